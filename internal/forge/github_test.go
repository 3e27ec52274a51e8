package forge_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/pagesmith/internal/forge"
	"github.com/slok/pagesmith/internal/model"
)

// newTestClient creates a GitHub client backed by an httptest server.
func newTestClient(t *testing.T, handler http.Handler) *forge.Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	c, err := forge.NewClientWithBaseURL(forge.ClientConfig{
		Owner: "someone",
		Token: "test-token",
	}, server.URL)
	require.NoError(t, err)

	return c
}

func TestClientCreateRepo(t *testing.T) {
	tests := map[string]struct {
		statusCode   int
		expErr       bool
		expExistsErr bool
	}{
		"A created repository should succeed.": {
			statusCode: http.StatusCreated,
		},

		"Creating an existing repository should fail, creation is not idempotent.": {
			statusCode:   http.StatusUnprocessableEntity,
			expErr:       true,
			expExistsErr: true,
		},

		"A provider error should fail.": {
			statusCode: http.StatusInternalServerError,
			expErr:     true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "/user/repos", r.URL.Path)
				assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

				var body map[string]interface{}
				_ = json.NewDecoder(r.Body).Decode(&body)
				assert.Equal(t, "build-a-todo-app", body["name"])
				assert.Equal(t, true, body["auto_init"])

				w.WriteHeader(test.statusCode)
			})

			c := newTestClient(t, handler)

			err := c.CreateRepo(context.TODO(), "build-a-todo-app")

			if !test.expErr {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, model.ErrRepositoryCreate)
			if test.expExistsErr {
				assert.ErrorIs(t, err, model.ErrAlreadyExists)
			}
		})
	}
}

func TestClientRepoExists(t *testing.T) {
	tests := map[string]struct {
		statusCode int
		expExists  bool
		expErr     bool
	}{
		"An existing repository should be reported as such.": {
			statusCode: http.StatusOK,
			expExists:  true,
		},

		"A missing repository should be reported as such, without error.": {
			statusCode: http.StatusNotFound,
			expExists:  false,
		},

		"A provider error should fail.": {
			statusCode: http.StatusInternalServerError,
			expErr:     true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/repos/someone/build-a-todo-app", r.URL.Path)
				w.WriteHeader(test.statusCode)
			})

			c := newTestClient(t, handler)

			exists, err := c.RepoExists(context.TODO(), "build-a-todo-app")

			if test.expErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, test.expExists, exists)
		})
	}
}

func TestClientGetFileSHA(t *testing.T) {
	tests := map[string]struct {
		statusCode int
		body       interface{}
		expSHA     string
		expErr     bool
		expNFErr   bool
	}{
		"An existing file should return its content identifier.": {
			statusCode: http.StatusOK,
			body:       map[string]string{"sha": "abc123"},
			expSHA:     "abc123",
		},

		"A missing file should fail with not found.": {
			statusCode: http.StatusNotFound,
			expErr:     true,
			expNFErr:   true,
		},

		"A response without sha should fail.": {
			statusCode: http.StatusOK,
			body:       map[string]string{},
			expErr:     true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/repos/someone/build-a-todo-app/contents/index.html", r.URL.Path)
				assert.Equal(t, "main", r.URL.Query().Get("ref"))

				w.WriteHeader(test.statusCode)
				if test.body != nil {
					_ = json.NewEncoder(w).Encode(test.body)
				}
			})

			c := newTestClient(t, handler)

			sha, err := c.GetFileSHA(context.TODO(), "build-a-todo-app", "index.html", "main")

			if test.expErr {
				assert.Error(t, err)
				if test.expNFErr {
					assert.ErrorIs(t, err, model.ErrNotFound)
				}
				return
			}
			require.NoError(t, err)
			assert.Equal(t, test.expSHA, sha)
		})
	}
}

func TestClientPutFile(t *testing.T) {
	tests := map[string]struct {
		sha        string
		statusCode int
		expErr     bool
	}{
		"A create-style write should not carry a sha.": {
			sha:        "",
			statusCode: http.StatusCreated,
		},

		"An update-style write should carry the current sha.": {
			sha:        "abc123",
			statusCode: http.StatusOK,
		},

		"A provider error should fail.": {
			sha:        "",
			statusCode: http.StatusConflict,
			expErr:     true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPut, r.Method)
				assert.Equal(t, "/repos/someone/build-a-todo-app/contents/index.html", r.URL.Path)

				var body map[string]interface{}
				_ = json.NewDecoder(r.Body).Decode(&body)
				assert.Equal(t, "Create index.html", body["message"])
				assert.Equal(t, "main", body["branch"])
				if test.sha == "" {
					assert.NotContains(t, body, "sha")
				} else {
					assert.Equal(t, test.sha, body["sha"])
				}

				w.WriteHeader(test.statusCode)
			})

			c := newTestClient(t, handler)

			err := c.PutFile(context.TODO(), "build-a-todo-app", "index.html", "main", "Create index.html", "PGh0bWw+", test.sha)

			if test.expErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestClientEnablePages(t *testing.T) {
	tests := map[string]struct {
		statusCode int
		expErr     bool
	}{
		"Enabling pages should succeed.": {
			statusCode: http.StatusCreated,
		},

		"Already enabled pages should not be an error.": {
			statusCode: http.StatusConflict,
		},

		"A provider error should fail.": {
			statusCode: http.StatusForbidden,
			expErr:     true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "/repos/someone/build-a-todo-app/pages", r.URL.Path)

				var body map[string]interface{}
				_ = json.NewDecoder(r.Body).Decode(&body)
				source := body["source"].(map[string]interface{})
				assert.Equal(t, "main", source["branch"])
				assert.Equal(t, "/", source["path"])

				w.WriteHeader(test.statusCode)
			})

			c := newTestClient(t, handler)

			err := c.EnablePages(context.TODO(), "build-a-todo-app", "main")

			if test.expErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestClientLatestCommit(t *testing.T) {
	tests := map[string]struct {
		statusCode int
		body       interface{}
		expSHA     string
		expErr     bool
	}{
		"The latest commit sha should be returned.": {
			statusCode: http.StatusOK,
			body:       map[string]string{"sha": "deadbeef"},
			expSHA:     "deadbeef",
		},

		"A missing branch should fail.": {
			statusCode: http.StatusNotFound,
			expErr:     true,
		},

		"A response without sha should fail.": {
			statusCode: http.StatusOK,
			body:       map[string]string{},
			expErr:     true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/repos/someone/build-a-todo-app/commits/main", r.URL.Path)

				w.WriteHeader(test.statusCode)
				if test.body != nil {
					_ = json.NewEncoder(w).Encode(test.body)
				}
			})

			c := newTestClient(t, handler)

			sha, err := c.LatestCommit(context.TODO(), "build-a-todo-app", "main")

			if test.expErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, test.expSHA, sha)
		})
	}
}
