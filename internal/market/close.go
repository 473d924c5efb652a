/*
Copyright © 2020 A. Jensen <jensen.aaro@gmail.com>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/

// Package market knows when the exchange's trading day is final.
package market

import (
	"time"

	"cloud.google.com/go/civil"
)

// DefaultTimezone is the exchange timezone used when none is configured.
const DefaultTimezone = "America/New_York"

// CloseHour is the local hour at which the day's bar is considered final.
const CloseHour = 16

// Clock reports the current time. Tests inject a fixed one.
type Clock func() time.Time

// LastClose returns the most recent calendar date whose session has closed,
// as seen from now in the exchange's location. Before 16:00 that is
// yesterday, otherwise today; weekends roll back to Friday.
func LastClose(now time.Time) civil.Date {
	d := civil.DateOf(now)
	if now.Hour() < CloseHour {
		d = d.AddDays(-1)
	}
	return BusinessDay(d)
}

// BusinessDay rolls Saturday and Sunday back to the preceding Friday.
func BusinessDay(d civil.Date) civil.Date {
	switch Weekday(d) {
	case time.Saturday:
		return d.AddDays(-1)
	case time.Sunday:
		return d.AddDays(-2)
	default:
		return d
	}
}

// Weekday is the day of the week d falls on.
func Weekday(d civil.Date) time.Weekday {
	return d.In(time.UTC).Weekday()
}

