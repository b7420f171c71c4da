package validate

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ArtifactDB/alabaster-go/pkg/errors"
	jsonpool "github.com/ArtifactDB/alabaster-go/pkg/json"
	"github.com/ArtifactDB/alabaster-go/pkg/metadata"
	"github.com/ArtifactDB/alabaster-go/pkg/registry"
)

// writeObject writes an OBJECT document for a node directory.
func writeObject(t *testing.T, dir string, meta map[string]interface{}) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	data, err := jsonpool.Marshal(meta)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, metadata.ObjectFile), data, 0o644))
}

// testRegistry returns an isolated registry with a container type whose
// children are listed by name in its metadata, and a leaf vector type.
func testRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg := registry.NewRegistry()

	require.NoError(t, reg.RegisterValidate("name_list", func(v registry.Validator, path string, meta metadata.Metadata) error {
		raw, _ := meta["children"].([]interface{})
		for _, entry := range raw {
			name, _ := entry.(string)
			if err := v.ValidateChild(path, filepath.Join(path, name)); err != nil {
				return err
			}
		}
		return nil
	}, registry.Replace))

	require.NoError(t, reg.RegisterValidate("atomic_vector", func(v registry.Validator, path string, meta metadata.Metadata) error {
		if _, ok := meta.Int("length"); !ok {
			return errors.Newf(errors.ErrorTypeMalformedMetadata, "atomic_vector at '%s' has no length", path)
		}
		return nil
	}, registry.Replace))

	require.NoError(t, reg.RegisterHeight("atomic_vector", func(v registry.Validator, path string, meta metadata.Metadata) (int64, error) {
		n, _ := meta.Int("length")
		return n, nil
	}, registry.Replace))

	require.NoError(t, reg.RegisterValidate(RedirectionType, ValidateRedirection, registry.Replace))
	return reg
}

// twoLevelTree lays out a container with two leaf children and returns the root.
func twoLevelTree(t *testing.T) string {
	t.Helper()
	root := filepath.Join(t.TempDir(), "experiment")
	writeObject(t, root, map[string]interface{}{
		"type":     "name_list",
		"children": []interface{}{"first", "second"},
	})
	writeObject(t, filepath.Join(root, "first"), map[string]interface{}{
		"type": "atomic_vector", "is_child": true, "length": 10,
	})
	writeObject(t, filepath.Join(root, "second"), map[string]interface{}{
		"type": "atomic_vector", "is_child": true, "length": 3,
	})
	return root
}

func TestValidateTree(t *testing.T) {
	v := New(testRegistry(t))
	root := twoLevelTree(t)

	require.NoError(t, v.Validate(context.Background(), root))
	// Validation is idempotent: nothing is retained across calls.
	require.NoError(t, v.Validate(context.Background(), root))
}

func TestValidateMissingChild(t *testing.T) {
	v := New(testRegistry(t))
	root := twoLevelTree(t)
	require.NoError(t, os.RemoveAll(filepath.Join(root, "second")))

	err := v.Validate(context.Background(), root)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeStructural))
	assert.Contains(t, err.Error(), "missing child object")
}

func TestValidateNonChildReferenced(t *testing.T) {
	v := New(testRegistry(t))
	root := twoLevelTree(t)
	writeObject(t, filepath.Join(root, "second"), map[string]interface{}{
		"type": "atomic_vector", "is_child": false, "length": 3,
	})

	err := v.Validate(context.Background(), root)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeStructural))
	assert.Contains(t, err.Error(), "non-child object")
}

func TestValidateDuplicateReference(t *testing.T) {
	v := New(testRegistry(t))
	root := filepath.Join(t.TempDir(), "experiment")
	writeObject(t, root, map[string]interface{}{
		"type":     "name_list",
		"children": []interface{}{"first", "first"},
	})
	writeObject(t, filepath.Join(root, "first"), map[string]interface{}{
		"type": "atomic_vector", "is_child": true, "length": 1,
	})

	err := v.Validate(context.Background(), root)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeStructural))
	assert.Contains(t, err.Error(), "multiple references to child")
}

func TestValidateNonNestedReference(t *testing.T) {
	v := New(testRegistry(t))
	base := t.TempDir()
	root := filepath.Join(base, "experiment")
	writeObject(t, root, map[string]interface{}{
		"type":     "name_list",
		"children": []interface{}{"../outside"},
	})
	writeObject(t, filepath.Join(base, "outside"), map[string]interface{}{
		"type": "atomic_vector", "is_child": true, "length": 1,
	})

	err := v.Validate(context.Background(), root)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeStructural))
	assert.Contains(t, err.Error(), "non-nested child")
}

func TestValidateUnknownType(t *testing.T) {
	v := New(testRegistry(t))
	root := filepath.Join(t.TempDir(), "thing")
	writeObject(t, root, map[string]interface{}{"type": "hologram"})

	err := v.Validate(context.Background(), root)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeUnknownType))
}

func TestValidateKnownTypeWithoutValidate(t *testing.T) {
	reg := registry.NewRegistry()
	require.NoError(t, reg.RegisterHeight("matrix", func(v registry.Validator, path string, meta metadata.Metadata) (int64, error) {
		return 0, nil
	}, registry.Replace))

	root := filepath.Join(t.TempDir(), "m")
	writeObject(t, root, map[string]interface{}{"type": "matrix"})

	err := New(reg).Validate(context.Background(), root)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeCapability))
}

func TestValidateMalformedMetadata(t *testing.T) {
	v := New(testRegistry(t))

	t.Run("unparseable document", func(t *testing.T) {
		root := filepath.Join(t.TempDir(), "broken")
		require.NoError(t, os.MkdirAll(root, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(root, metadata.ObjectFile), []byte("{"), 0o644))

		err := v.Validate(context.Background(), root)
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeMalformedMetadata))
	})

	t.Run("missing type field", func(t *testing.T) {
		root := filepath.Join(t.TempDir(), "untyped")
		writeObject(t, root, map[string]interface{}{"length": 5})

		err := v.Validate(context.Background(), root)
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeMalformedMetadata))
	})
}

func TestValidateDepthBound(t *testing.T) {
	reg := registry.NewRegistry()
	require.NoError(t, reg.RegisterValidate("loop", func(v registry.Validator, path string, meta metadata.Metadata) error {
		return v.ValidateObject(path)
	}, registry.Replace))

	root := filepath.Join(t.TempDir(), "loop")
	writeObject(t, root, map[string]interface{}{"type": "loop"})

	err := New(reg, WithMaxDepth(8)).Validate(context.Background(), root)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeStructural))
	assert.Contains(t, err.Error(), "nesting depth")
}

func TestHeightDispatch(t *testing.T) {
	v := New(testRegistry(t))
	root := twoLevelTree(t)

	h, err := v.Height(filepath.Join(root, "first"))
	require.NoError(t, err)
	assert.Equal(t, int64(10), h)

	// name_list is known (validate handler) but has no height capability.
	_, err = v.Height(root)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeCapability))
}

func TestDimensionsDispatch(t *testing.T) {
	reg := testRegistry(t)
	require.NoError(t, reg.RegisterDimensions("atomic_vector", func(v registry.Validator, path string, meta metadata.Metadata) ([]int64, error) {
		n, _ := meta.Int("length")
		return []int64{n}, nil
	}, registry.Replace))

	v := New(reg)
	root := twoLevelTree(t)

	dims, err := v.Dimensions(filepath.Join(root, "second"))
	require.NoError(t, err)
	assert.Equal(t, []int64{3}, dims)
}

func TestSatisfiesThroughSession(t *testing.T) {
	reg := testRegistry(t)
	reg.DeclareInterface("atomic_vector", "SIMPLE_VECTOR")
	require.NoError(t, reg.DeclareDerivation("factor", "atomic_vector"))

	// A container handler that insists its children satisfy an interface.
	require.NoError(t, reg.RegisterValidate("constrained_list", func(v registry.Validator, path string, meta metadata.Metadata) error {
		childPath := filepath.Join(path, "values")
		childMeta, err := metadata.ReadObjectFile(childPath)
		if err != nil {
			return err
		}
		tag, err := childMeta.Type()
		if err != nil {
			return err
		}
		if !v.Satisfies(tag, "SIMPLE_VECTOR") {
			return errors.Newf(errors.ErrorTypeStructural,
				"child at '%s' does not satisfy SIMPLE_VECTOR", childPath)
		}
		return v.ValidateChild(path, childPath)
	}, registry.Replace))

	root := filepath.Join(t.TempDir(), "constrained")
	writeObject(t, root, map[string]interface{}{"type": "constrained_list"})
	writeObject(t, filepath.Join(root, "values"), map[string]interface{}{
		"type": "factor", "is_child": true, "length": 2,
	})

	reqErr := New(reg).Validate(context.Background(), root)
	// factor inherits SIMPLE_VECTOR via derivation, but it has no validate
	// handler of its own.
	require.Error(t, reqErr)
	assert.True(t, errors.IsType(reqErr, errors.ErrorTypeCapability))

	require.NoError(t, reg.RegisterValidate("factor", func(v registry.Validator, path string, meta metadata.Metadata) error {
		return nil
	}, registry.Replace))
	require.NoError(t, New(reg).Validate(context.Background(), root))
}

func TestRedirection(t *testing.T) {
	newTree := func(t *testing.T) (string, string) {
		base := t.TempDir()
		target := filepath.Join(base, "real")
		writeObject(t, target, map[string]interface{}{
			"type": "atomic_vector", "length": 4,
		})
		redirect := filepath.Join(base, "alias")
		writeObject(t, redirect, map[string]interface{}{
			"type":        RedirectionType,
			"redirection": map[string]interface{}{"path": "real"},
		})
		return redirect, target
	}

	t.Run("valid one-hop redirect", func(t *testing.T) {
		v := New(testRegistry(t))
		redirect, _ := newTree(t)
		require.NoError(t, v.Validate(context.Background(), redirect))
	})

	t.Run("dangling target", func(t *testing.T) {
		v := New(testRegistry(t))
		redirect, target := newTree(t)
		require.NoError(t, os.RemoveAll(target))

		err := v.Validate(context.Background(), redirect)
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeRedirection))
		assert.Contains(t, err.Error(), "invalid redirection")
	})

	t.Run("self reference", func(t *testing.T) {
		v := New(testRegistry(t))
		redirect := filepath.Join(t.TempDir(), "alias")
		writeObject(t, redirect, map[string]interface{}{
			"type":        RedirectionType,
			"redirection": map[string]interface{}{"path": "alias"},
		})

		err := v.Validate(context.Background(), redirect)
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeRedirection))
		assert.Contains(t, err.Error(), "own location")
	})

	t.Run("redirect chains rejected", func(t *testing.T) {
		v := New(testRegistry(t))
		redirect, target := newTree(t)
		writeObject(t, target, map[string]interface{}{
			"type":        RedirectionType,
			"redirection": map[string]interface{}{"path": "alias"},
		})

		err := v.Validate(context.Background(), redirect)
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeRedirection))
	})

	t.Run("missing record", func(t *testing.T) {
		v := New(testRegistry(t))
		redirect := filepath.Join(t.TempDir(), "alias")
		writeObject(t, redirect, map[string]interface{}{"type": RedirectionType})

		err := v.Validate(context.Background(), redirect)
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeRedirection))
	})
}

func TestRedirectionRegisteredByDefault(t *testing.T) {
	_, err := registry.Default().LookupValidate(RedirectionType)
	require.NoError(t, err)
}
