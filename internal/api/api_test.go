package api

import (
	"context"
	"errors"
	"io/ioutil"
	"net/http"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/Finnhub-Stock-API/finnhub-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleErr(t *testing.T) {
	cause := errors.New("boom")

	t.Run("no response", func(t *testing.T) {
		err := handleErr("request failed", nil, cause)
		assert.True(t, errors.Is(err, cause))
		assert.Equal(t, "request failed: boom", err.Error())
	})

	t.Run("rate limited", func(t *testing.T) {
		resp := &http.Response{StatusCode: http.StatusTooManyRequests}
		err := handleErr("request failed", resp, cause)
		assert.True(t, errors.Is(err, ErrToManyRequests))
	})

	t.Run("body is included", func(t *testing.T) {
		resp := &http.Response{StatusCode: http.StatusBadRequest, Body: ioutil.NopCloser(strings.NewReader("bad symbol"))}
		err := handleErr("request failed", resp, cause)
		assert.True(t, errors.Is(err, cause))
		assert.Contains(t, err.Error(), "(bad symbol)")
	})
}

func TestWait(t *testing.T) {
	assert.NoError(t, wait(context.Background(), nil))

	ch := make(chan time.Time, 1)
	ch <- time.Now()
	assert.NoError(t, wait(context.Background(), ch))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := wait(ctx, ch)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestCandlesToQuote(t *testing.T) {
	jan2 := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	jan3 := jan2.AddDate(0, 0, 1)

	in := finnhub.StockCandles{
		O: []float32{1, 2},
		H: []float32{3, 4},
		L: []float32{0.5, 1.5},
		C: []float32{2, 3},
		V: []float32{100, 200},
		T: []int64{jan2.Unix(), jan3.Unix()},
		S: "ok",
	}

	q, err := candlesToQuote("AAPL", in)
	require.NoError(t, err)
	assert.Equal(t, "AAPL", q.Symbol)
	assert.Equal(t, []time.Time{jan2, jan3}, q.Date)
	assert.Equal(t, []float64{1, 2}, q.Open)
	assert.Equal(t, []float64{100, 200}, q.Volume)

	in.V = in.V[:1]
	_, err = candlesToQuote("AAPL", in)
	assert.EqualError(t, err, `len(volume) = 1, len(timestamp) = 2 for stock "AAPL"`)
}

func TestFinnhubWindow(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	end := civil.Date{Year: 2024, Month: 1, Day: 10}
	req := BarsRequest{Symbol: "AAPL", Start: civil.Date{Year: 2024, Month: 1, Day: 8}, End: end}

	from, to := finnhubWindow(req, ny)
	assert.True(t, time.Date(2024, 1, 8, 0, 0, 0, 0, ny).Equal(from), "from = %v", from)
	assert.True(t, time.Date(2024, 1, 10, 23, 59, 59, 0, ny).Equal(to), "to = %v", to)

	req.Period = PeriodMax
	from, _ = finnhubWindow(req, ny)
	assert.Equal(t, int64(0), from.Unix())
}

func TestResolution(t *testing.T) {
	for interval, want := range map[string]string{"": "D", "1d": "D", "1wk": "W", "1mo": "M"} {
		got, err := finnhubResolution(interval)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := finnhubResolution("1h")
	assert.True(t, errors.Is(err, ErrUnsupportedInterval))

	_, err = tiingoPeriod("5m")
	assert.True(t, errors.Is(err, ErrUnsupportedInterval))
}

func TestBarsRequestString(t *testing.T) {
	end := civil.Date{Year: 2024, Month: 1, Day: 10}
	assert.Equal(t, "AAPL period=max end=2024-01-10 interval=1d", BarsRequest{Symbol: "AAPL", Interval: "1d", Period: PeriodMax, End: end}.String())
	assert.Equal(t, "AAPL 2024-01-09..2024-01-10 interval=1d", BarsRequest{Symbol: "AAPL", Interval: "1d", Start: end.AddDays(-1), End: end}.String())
}
