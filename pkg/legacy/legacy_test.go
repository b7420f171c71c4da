package legacy

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ArtifactDB/alabaster-go/pkg/errors"
	jsonpool "github.com/ArtifactDB/alabaster-go/pkg/json"
)

// writeDoc writes a metadata document at <declared>.json under root.
func writeDoc(t *testing.T, root, declared string, meta map[string]interface{}) {
	t.Helper()
	meta["path"] = declared
	data, err := jsonpool.Marshal(meta)
	require.NoError(t, err)
	target := filepath.Join(root, filepath.FromSlash(declared)+".json")
	require.NoError(t, os.MkdirAll(filepath.Dir(target), 0o755))
	require.NoError(t, os.WriteFile(target, data, 0o644))
}

// writeDocGz is writeDoc with gzip compression and a .json.gz suffix.
func writeDocGz(t *testing.T, root, declared string, meta map[string]interface{}) {
	t.Helper()
	meta["path"] = declared
	data, err := jsonpool.Marshal(meta)
	require.NoError(t, err)
	target := filepath.Join(root, filepath.FromSlash(declared)+".json.gz")
	require.NoError(t, os.MkdirAll(filepath.Dir(target), 0o755))
	f, err := os.Create(target)
	require.NoError(t, err)
	zw := gzip.NewWriter(f)
	_, err = zw.Write(data)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
}

// reference builds a child resource entry the way legacy parents embed them.
func reference(child string) map[string]interface{} {
	return map[string]interface{}{
		"resource": map[string]interface{}{"path": child, "type": "local"},
	}
}

// validGraph lays out a two-level experiment with two referenced assays.
func validGraph(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeDoc(t, root, "experiment", map[string]interface{}{
		"summarized_experiment": map[string]interface{}{
			"assays": []interface{}{
				map[string]interface{}{"name": "counts", "resource": reference("experiment/assay-1")["resource"]},
				map[string]interface{}{"name": "logcounts", "resource": reference("experiment/assay-2")["resource"]},
			},
		},
	})
	writeDoc(t, root, "experiment/assay-1", map[string]interface{}{"is_child": true})
	writeDoc(t, root, "experiment/assay-2", map[string]interface{}{"is_child": true})
	return root
}

func TestValidateGraph(t *testing.T) {
	v := New()
	root := validGraph(t)

	require.NoError(t, v.Validate(context.Background(), root))
	require.NoError(t, v.Validate(context.Background(), root))
}

func TestValidateCompressedDocuments(t *testing.T) {
	root := t.TempDir()
	writeDoc(t, root, "experiment", map[string]interface{}{
		"contents": reference("experiment/values"),
	})
	writeDocGz(t, root, "experiment/values", map[string]interface{}{"is_child": true})

	require.NoError(t, New().Validate(context.Background(), root))
}

func TestValidateDataFilesAccounted(t *testing.T) {
	root := validGraph(t)
	// The assay's data file sits at its declared path.
	require.NoError(t, os.WriteFile(
		filepath.Join(root, "experiment", "assay-1"), []byte("payload"), 0o644))

	require.NoError(t, New().Validate(context.Background(), root))
}

func TestMissingChild(t *testing.T) {
	root := validGraph(t)
	require.NoError(t, os.Remove(filepath.Join(root, "experiment", "assay-2.json")))

	err := New().Validate(context.Background(), root)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeStructural))
	assert.Contains(t, err.Error(), "missing child object")
}

func TestDuplicateReference(t *testing.T) {
	root := t.TempDir()
	writeDoc(t, root, "experiment", map[string]interface{}{
		"assays": []interface{}{
			reference("experiment/assay-1"),
			reference("experiment/assay-1"),
		},
	})
	writeDoc(t, root, "experiment/assay-1", map[string]interface{}{"is_child": true})

	err := New().Validate(context.Background(), root)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "multiple references to child at")
}

func TestNonChildReferenced(t *testing.T) {
	root := t.TempDir()
	writeDoc(t, root, "experiment", map[string]interface{}{
		"contents": reference("experiment/values"),
	})
	writeDoc(t, root, "experiment/values", map[string]interface{}{"is_child": false})

	err := New().Validate(context.Background(), root)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "non-child object")
	assert.Contains(t, err.Error(), "is referenced by")
}

func TestNonNestedReference(t *testing.T) {
	root := t.TempDir()
	writeDoc(t, root, "experiment", map[string]interface{}{
		"contents": reference("experiment/inner"),
	})
	writeDoc(t, root, "experiment/inner", map[string]interface{}{
		"is_child": true,
		"contents": reference("elsewhere/leaf"),
	})
	writeDoc(t, root, "elsewhere/leaf", map[string]interface{}{"is_child": true})

	err := New().Validate(context.Background(), root)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "references non-nested child")
}

func TestNonReferencedChild(t *testing.T) {
	root := validGraph(t)
	writeDoc(t, root, "experiment/stray", map[string]interface{}{"is_child": false})

	err := New().Validate(context.Background(), root)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "non-referenced child object")
}

func TestUnreferencedNestedChild(t *testing.T) {
	root := validGraph(t)
	writeDoc(t, root, "experiment/ghost", map[string]interface{}{"is_child": true})

	err := New().Validate(context.Background(), root)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is nested inside the directory of 'experiment'")
}

func TestDeclaredPathMismatch(t *testing.T) {
	root := t.TempDir()
	data, err := jsonpool.Marshal(map[string]interface{}{"path": "elsewhere"})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(root, "experiment.json"), data, 0o644))

	vErr := New().Validate(context.Background(), root)
	require.Error(t, vErr)
	assert.True(t, errors.IsType(vErr, errors.ErrorTypeStructural))
	assert.Contains(t, vErr.Error(), "unexpected path")
}

func TestMissingPathProperty(t *testing.T) {
	root := t.TempDir()
	data, err := jsonpool.Marshal(map[string]interface{}{"is_child": false})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(root, "experiment.json"), data, 0o644))

	vErr := New().Validate(context.Background(), root)
	require.Error(t, vErr)
	assert.True(t, errors.IsType(vErr, errors.ErrorTypeMalformedMetadata))
}

func TestUnknownFile(t *testing.T) {
	root := validGraph(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"), []byte("scratch"), 0o644))

	err := New().Validate(context.Background(), root)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeStructural))
	assert.Contains(t, err.Error(), "unknown file 'notes.txt'")
}

func TestRedirection(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		root := validGraph(t)
		writeDoc(t, root, "alias", map[string]interface{}{
			"redirection": map[string]interface{}{"path": "experiment"},
		})
		require.NoError(t, New().Validate(context.Background(), root))
	})

	t.Run("self target", func(t *testing.T) {
		root := validGraph(t)
		writeDoc(t, root, "alias", map[string]interface{}{
			"redirection": map[string]interface{}{"path": "alias"},
		})

		err := New().Validate(context.Background(), root)
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeRedirection))
		assert.Contains(t, err.Error(), "redirection from existing path")
	})

	t.Run("dangling target", func(t *testing.T) {
		root := validGraph(t)
		writeDoc(t, root, "alias", map[string]interface{}{
			"redirection": map[string]interface{}{"path": "missing"},
		})

		err := New().Validate(context.Background(), root)
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeRedirection))
		assert.Contains(t, err.Error(), "invalid redirection")
	})

	t.Run("chained target", func(t *testing.T) {
		root := validGraph(t)
		writeDoc(t, root, "alias1", map[string]interface{}{
			"redirection": map[string]interface{}{"path": "alias2"},
		})
		writeDoc(t, root, "alias2", map[string]interface{}{
			"redirection": map[string]interface{}{"path": "experiment"},
		})

		err := New().Validate(context.Background(), root)
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeRedirection))
		assert.Contains(t, err.Error(), "target is itself a redirection")
	})

	t.Run("cyclic targets", func(t *testing.T) {
		root := validGraph(t)
		writeDoc(t, root, "alias1", map[string]interface{}{
			"redirection": map[string]interface{}{"path": "alias2"},
		})
		writeDoc(t, root, "alias2", map[string]interface{}{
			"redirection": map[string]interface{}{"path": "alias1"},
		})

		err := New().Validate(context.Background(), root)
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeRedirection))
		assert.Contains(t, err.Error(), "target is itself a redirection")
	})

	t.Run("declared path mismatch", func(t *testing.T) {
		root := validGraph(t)
		data, err := jsonpool.Marshal(map[string]interface{}{
			"path":        "other",
			"redirection": map[string]interface{}{"path": "experiment"},
		})
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(root, "alias.json"), data, 0o644))

		vErr := New().Validate(context.Background(), root)
		require.Error(t, vErr)
		assert.True(t, errors.IsType(vErr, errors.ErrorTypeRedirection))
		assert.Contains(t, vErr.Error(), "references an unexpected path")
	})
}
