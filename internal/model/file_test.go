package model_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/pagesmith/internal/model"
)

func TestFileContentTransport(t *testing.T) {
	tests := map[string]struct {
		content model.FileContent
		exp     string
	}{
		"Text content should be base64 encoded for transport.": {
			content: model.TextContent("<html></html>"),
			exp:     "PGh0bWw+PC9odG1sPg==",
		},

		"Binary content should be base64 encoded for transport.": {
			content: model.BinaryContent([]byte{0x89, 0x50, 0x4e, 0x47}),
			exp:     "iVBORw==",
		},

		"Empty text content should encode to empty.": {
			content: model.TextContent(""),
			exp:     "",
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, test.exp, test.content.Transport())
		})
	}
}

func TestGeneratedFilePath(t *testing.T) {
	tests := map[string]struct {
		file    model.GeneratedFile
		expPath string
	}{
		"A file without directory should use its name.": {
			file:    model.GeneratedFile{Name: "index.html", Content: model.TextContent("x")},
			expPath: "index.html",
		},

		"A file in the current directory should use its name.": {
			file:    model.GeneratedFile{Name: "index.html", Dir: ".", Content: model.TextContent("x")},
			expPath: "index.html",
		},

		"A file in a subdirectory should join directory and name.": {
			file:    model.GeneratedFile{Name: "logo.png", Dir: "assets", Content: model.BinaryContent([]byte{1})},
			expPath: "assets/logo.png",
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, test.expPath, test.file.Path())
		})
	}
}

func TestFileSet(t *testing.T) {
	t.Run("Adding files should key them by path and keep sorted paths.", func(t *testing.T) {
		assert := assert.New(t)

		files := model.FileSet{}
		require.NoError(t, files.Add(model.GeneratedFile{Name: "styles.css", Content: model.TextContent("body{}")}))
		require.NoError(t, files.Add(model.GeneratedFile{Name: "index.html", Content: model.TextContent("<html>")}))

		assert.Equal([]string{"index.html", "styles.css"}, files.Paths())
		assert.NoError(files.Validate())
	})

	t.Run("Adding a duplicate path should fail.", func(t *testing.T) {
		files := model.FileSet{}
		require.NoError(t, files.Add(model.GeneratedFile{Name: "index.html", Content: model.TextContent("a")}))

		err := files.Add(model.GeneratedFile{Name: "index.html", Content: model.TextContent("b")})
		assert.ErrorIs(t, err, model.ErrAlreadyExists)
	})

	t.Run("An empty set should not validate.", func(t *testing.T) {
		err := model.FileSet{}.Validate()
		assert.ErrorIs(t, err, model.ErrNotValid)
	})

	t.Run("A file without content should not be addable.", func(t *testing.T) {
		err := model.FileSet{}.Add(model.GeneratedFile{Name: "index.html"})
		assert.ErrorIs(t, err, model.ErrNotValid)
	})
}
