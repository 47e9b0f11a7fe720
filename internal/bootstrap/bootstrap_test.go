package bootstrap_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"realty/internal/bootstrap"
	"realty/internal/shared"
)

func TestOpenRepository_UnknownStore(t *testing.T) {
	_, closeFn, err := bootstrap.OpenRepository(context.Background(), shared.Config{DocStore: "sqlite"})
	require.Error(t, err)
	closeFn()
}

func TestOpenImageStore(t *testing.T) {
	ctx := context.Background()
	_, _, err := bootstrap.OpenImageStore(ctx, shared.Config{ImageStore: "s3"})
	assert.Error(t, err)

	_, _, err = bootstrap.OpenImageStore(ctx, shared.Config{ImageStore: "cloudinary"})
	assert.Error(t, err, "missing credentials")

	st, closeFn, err := bootstrap.OpenImageStore(ctx, shared.Config{
		ImageStore: "cloudinary", CloudinaryCloud: "demo", CloudinaryKey: "k", CloudinarySecret: "s", CloudinaryRPS: 5,
	})
	require.NoError(t, err)
	assert.NotNil(t, st)
	closeFn()
}

func TestOpenCache(t *testing.T) {
	ctx := context.Background()
	c, closeFn := bootstrap.OpenCache(ctx, shared.Config{})
	assert.Nil(t, c)
	closeFn()

	mr := miniredis.RunT(t)
	c, closeFn = bootstrap.OpenCache(ctx, shared.Config{RedisAddr: mr.Addr()})
	require.NotNil(t, c)
	closeFn()
}

func TestServices_MatchMode(t *testing.T) {
	_, _, err := bootstrap.Services(shared.Config{ImageMatchMode: "fuzzy"}, nil, nil, nil)
	assert.Error(t, err)

	a, q, err := bootstrap.Services(shared.Config{ImageMatchMode: "exact", ImageFolder: "property_images", ImageMaxDimension: 1000}, nil, nil, nil)
	require.NoError(t, err)
	assert.NotNil(t, a)
	assert.NotNil(t, q)
}
