package binance

import (
	"net/http"
	"strconv"

	"spreadwatch/logger"
)

const usedWeightHeader = "X-MBX-USED-WEIGHT-1m"

// weightTransport reports the request weight Binance charged for every REST
// response as a `used_weight` gauge.
type weightTransport struct {
	base http.RoundTripper
	log  *logger.Log
}

func (t *weightTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	reportUsedWeight(t.log, resp.Header, req.URL.Path)
	return resp, nil
}

func reportUsedWeight(log *logger.Log, header http.Header, endpoint string) {
	usedStr := header.Get(usedWeightHeader)
	if usedStr == "" {
		return
	}
	used, err := strconv.ParseInt(usedStr, 10, 64)
	if err != nil {
		return
	}
	log.WithComponent("snapshot_reader").LogMetric("snapshot_reader", "used_weight", used, "gauge", logger.Fields{
		"endpoint": endpoint,
	})
}
