package client

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// testLogger counts calls per level.
type testLogger struct {
	debug, info, errs int
}

func (l *testLogger) Debugf(string, ...interface{}) { l.debug++ }
func (l *testLogger) Infof(string, ...interface{})  { l.info++ }
func (l *testLogger) Errorf(string, ...interface{}) { l.errs++ }

func TestWithHTTPClient(t *testing.T) {
	custom := &http.Client{Timeout: time.Minute}
	c := &Client{}
	WithHTTPClient(custom)(c)
	assert.Same(t, custom, c.httpClient)
}

func TestWithTimeout(t *testing.T) {
	c := &Client{httpClient: &http.Client{Timeout: time.Second}}
	WithTimeout(0)(c)
	assert.Equal(t, time.Second, c.httpClient.Timeout)
	WithTimeout(5 * time.Second)(c)
	assert.Equal(t, 5*time.Second, c.httpClient.Timeout)
}

func TestWithRetryMax(t *testing.T) {
	c := &Client{retryMax: 3}
	WithRetryMax(-1)(c)
	assert.Equal(t, 3, c.retryMax)
	WithRetryMax(0)(c)
	assert.Equal(t, 0, c.retryMax)
}

func TestWithRetryWait(t *testing.T) {
	c := &Client{}
	WithRetryWait(time.Second, 5*time.Second)(c)
	assert.Equal(t, time.Second, c.retryWaitMin)
	assert.Equal(t, 5*time.Second, c.retryWaitMax)

	c = &Client{}
	WithRetryWait(5*time.Second, time.Second)(c)
	assert.Equal(t, 5*time.Second, c.retryWaitMin)
	assert.Zero(t, c.retryWaitMax)

	c = &Client{}
	WithRetryWait(0, time.Second)(c)
	assert.Zero(t, c.retryWaitMin)
}

func TestWithUserAgentAndAPIKey(t *testing.T) {
	c := &Client{userAgent: "default"}
	WithUserAgent("")(c)
	assert.Equal(t, "default", c.userAgent)
	WithUserAgent("custom/1.0")(c)
	assert.Equal(t, "custom/1.0", c.userAgent)

	WithAPIKey("secret")(c)
	assert.Equal(t, "secret", c.apiKey)
}

//Personal.AI order the ending
