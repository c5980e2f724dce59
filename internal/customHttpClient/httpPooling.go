package customHttpClient

import (
	"net/http"
	"sync"
	"time"

	"github.com/akolanti/DocQA/internal/config"
)

var (
	once   sync.Once
	client *http.Client
)

// GetClient returns the process-wide client so the llm and embedding sdks reuse connections.
// Timeouts are left to the per-call contexts.
func GetClient() *http.Client {
	once.Do(func() {
		client = &http.Client{Transport: NewTransport()}
	})
	return client
}

func NewTransport() *http.Transport {
	base := http.DefaultTransport.(*http.Transport).Clone()
	base.MaxIdleConns = config.MaxIdleConns
	base.MaxIdleConnsPerHost = config.MaxIdleConnsPerHost
	base.IdleConnTimeout = config.IdleConnTimeout
	base.TLSHandshakeTimeout = 10 * time.Second
	return base
}
