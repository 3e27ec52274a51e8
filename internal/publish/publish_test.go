package publish_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/slok/pagesmith/internal/model"
	"github.com/slok/pagesmith/internal/publish"
)

type mockForge struct {
	mock.Mock
}

func (m *mockForge) GetFileSHA(ctx context.Context, repo, path, branch string) (string, error) {
	args := m.Called(ctx, repo, path, branch)
	return args.String(0), args.Error(1)
}

func (m *mockForge) PutFile(ctx context.Context, repo, path, branch, message, transportContent, sha string) error {
	args := m.Called(ctx, repo, path, branch, message, transportContent, sha)
	return args.Error(0)
}

func testFileSet(t *testing.T, names ...string) model.FileSet {
	t.Helper()

	files := model.FileSet{}
	for _, n := range names {
		require.NoError(t, files.Add(model.GeneratedFile{Name: n, Content: model.TextContent("content of " + n)}))
	}
	return files
}

func TestPublisherPublish(t *testing.T) {
	notFoundErr := fmt.Errorf("file: %w", model.ErrNotFound)

	tests := map[string]struct {
		files      func(t *testing.T) model.FileSet
		round      model.Round
		mock       func(m *mockForge)
		expErr     bool
		expSuccess bool
		expResults map[string]model.FilePublishResult
	}{
		"New files should be written create-style, without content identifier.": {
			files: func(t *testing.T) model.FileSet { return testFileSet(t, "index.html") },
			round: model.RoundInitial,
			mock: func(m *mockForge) {
				m.On("GetFileSHA", mock.Anything, "repo", "index.html", "main").Once().Return("", notFoundErr)
				m.On("PutFile", mock.Anything, "repo", "index.html", "main", "Create index.html", mock.Anything, "").Once().Return(nil)
			},
			expSuccess: true,
			expResults: map[string]model.FilePublishResult{
				"index.html": {Path: "index.html", Updated: false},
			},
		},

		"Existing files should be written update-style, with their content identifier.": {
			files: func(t *testing.T) model.FileSet { return testFileSet(t, "index.html") },
			round: model.RoundRevision,
			mock: func(m *mockForge) {
				m.On("GetFileSHA", mock.Anything, "repo", "index.html", "main").Once().Return("abc123", nil)
				m.On("PutFile", mock.Anything, "repo", "index.html", "main", "Revise index.html", mock.Anything, "abc123").Once().Return(nil)
			},
			expSuccess: true,
			expResults: map[string]model.FilePublishResult{
				"index.html": {Path: "index.html", Updated: true},
			},
		},

		"A single file failure should not stop the remaining files.": {
			files: func(t *testing.T) model.FileSet {
				return testFileSet(t, "index.html", "styles.css", "script.js", "README.md")
			},
			round: model.RoundInitial,
			mock: func(m *mockForge) {
				m.On("GetFileSHA", mock.Anything, "repo", mock.Anything, "main").Return("", notFoundErr)
				m.On("PutFile", mock.Anything, "repo", "index.html", "main", mock.Anything, mock.Anything, "").Once().Return(fmt.Errorf("rate limited"))
				m.On("PutFile", mock.Anything, "repo", mock.Anything, "main", mock.Anything, mock.Anything, "").Return(nil)
			},
			expSuccess: false,
			expResults: map[string]model.FilePublishResult{
				"README.md":  {Path: "README.md"},
				"index.html": {Path: "index.html", Error: "upserting contents: rate limited"},
				"script.js":  {Path: "script.js"},
				"styles.css": {Path: "styles.css"},
			},
		},

		"A content lookup failure that is not a missing file should fail that file.": {
			files: func(t *testing.T) model.FileSet { return testFileSet(t, "index.html") },
			round: model.RoundInitial,
			mock: func(m *mockForge) {
				m.On("GetFileSHA", mock.Anything, "repo", "index.html", "main").Once().Return("", fmt.Errorf("boom"))
			},
			expSuccess: false,
			expResults: map[string]model.FilePublishResult{
				"index.html": {Path: "index.html", Error: "looking up current contents: boom"},
			},
		},

		"An empty file set should not be publishable.": {
			files:  func(t *testing.T) model.FileSet { return model.FileSet{} },
			round:  model.RoundInitial,
			mock:   func(m *mockForge) {},
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			m := &mockForge{}
			test.mock(m)

			p, err := publish.NewPublisher(publish.PublisherConfig{Forge: m, Branch: "main"})
			require.NoError(t, err)

			report, err := p.Publish(context.TODO(), "repo", test.files(t), test.round)

			if test.expErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)

			assert.Equal(t, test.expSuccess, report.Success)
			assert.Len(t, report.Files, len(test.expResults))
			for _, got := range report.Files {
				assert.Equal(t, test.expResults[got.Path], got)
			}

			m.AssertExpectations(t)
		})
	}
}

func TestPublisherPublishedPaths(t *testing.T) {
	require := require.New(t)

	m := &mockForge{}
	m.On("GetFileSHA", mock.Anything, "repo", mock.Anything, "main").Return("", fmt.Errorf("file: %w", model.ErrNotFound))
	m.On("PutFile", mock.Anything, "repo", "styles.css", "main", mock.Anything, mock.Anything, "").Return(fmt.Errorf("boom"))
	m.On("PutFile", mock.Anything, "repo", mock.Anything, "main", mock.Anything, mock.Anything, "").Return(nil)

	p, err := publish.NewPublisher(publish.PublisherConfig{Forge: m, Branch: "main"})
	require.NoError(err)

	report, err := p.Publish(context.TODO(), "repo", testFileSet(t, "index.html", "styles.css", "script.js"), model.RoundInitial)
	require.NoError(err)

	assert.False(t, report.Success)
	assert.Equal(t, []string{"index.html", "script.js"}, report.Published())
}
