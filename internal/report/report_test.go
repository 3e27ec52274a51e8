package report_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/pagesmith/internal/model"
	"github.com/slok/pagesmith/internal/report"
)

func testResult() model.DeploymentResult {
	return model.DeploymentResult{
		TaskID:       "build-a-todo-app",
		Round:        model.RoundInitial,
		RepoURL:      "https://github.com/someone/build-a-todo-app",
		PagesURL:     "https://someone.github.io/build-a-todo-app/",
		CommitSHA:    "deadbeef",
		FilesCreated: []string{"index.html", "styles.css"},
		Status:       model.DeploymentStatusSuccess,
	}
}

func TestHTTPReporterReport(t *testing.T) {
	tests := map[string]struct {
		handler      http.HandlerFunc
		expDelivered bool
		expStatus    int
		expBody      string
	}{
		"A 2xx callback response should be a delivered outcome.": {
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte(`{"received":true}`))
			},
			expDelivered: true,
			expStatus:    http.StatusOK,
			expBody:      `{"received":true}`,
		},

		"A non-JSON callback response body should be kept as opaque text.": {
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte("thanks!"))
			},
			expDelivered: true,
			expStatus:    http.StatusOK,
			expBody:      "thanks!",
		},

		"A non-2xx callback response should be captured, not raised.": {
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
			},
			expDelivered: false,
			expStatus:    http.StatusBadGateway,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			server := httptest.NewServer(test.handler)
			t.Cleanup(server.Close)

			r, err := report.NewHTTPReporter(report.HTTPReporterConfig{})
			require.NoError(t, err)

			outcome := r.Report(context.TODO(), server.URL, testResult())

			assert.Equal(t, test.expDelivered, outcome.Delivered)
			assert.Equal(t, test.expStatus, outcome.StatusCode)
			assert.Equal(t, test.expBody, outcome.Body)
			if !test.expDelivered {
				assert.NotEmpty(t, outcome.Error)
			}
		})
	}
}

func TestHTTPReporterPayloadShape(t *testing.T) {
	require := require.New(t)

	var got map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		_ = json.NewDecoder(r.Body).Decode(&got)
	}))
	t.Cleanup(server.Close)

	r, err := report.NewHTTPReporter(report.HTTPReporterConfig{})
	require.NoError(err)

	outcome := r.Report(context.TODO(), server.URL, testResult())
	require.True(outcome.Delivered)

	assert.Equal(t, "build-a-todo-app", got["task"])
	assert.Equal(t, float64(1), got["round"])
	assert.Equal(t, "https://github.com/someone/build-a-todo-app", got["repo_url"])
	assert.Equal(t, "https://someone.github.io/build-a-todo-app/", got["pages_url"])
	assert.Equal(t, "deadbeef", got["commit_sha"])
	assert.Equal(t, []interface{}{"index.html", "styles.css"}, got["files_created"])
	assert.Equal(t, "success", got["status"])
}

func TestHTTPReporterNetworkFailure(t *testing.T) {
	require := require.New(t)

	// A server that is already closed refuses connections.
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	r, err := report.NewHTTPReporter(report.HTTPReporterConfig{})
	require.NoError(err)

	outcome := r.Report(context.TODO(), url, testResult())

	assert.False(t, outcome.Delivered)
	assert.NotEmpty(t, outcome.Error)
}
