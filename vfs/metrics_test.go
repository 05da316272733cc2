package vfs_test

import (
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vfsmux/vfsmux/vfs"
	"github.com/vfsmux/vfsmux/vfs/vfstest"
)

func TestMetricsHandler(t *testing.T) {
	v := vfs.New(nil)
	b := vfstest.New()
	_, err := v.Register("/m", b.Ops(), nil, vfs.FlagDefault)
	require.NoError(t, err)

	fd, err := v.Open("/m/f", os.O_RDONLY, 0)
	require.NoError(t, err)
	_, err = v.Read(fd, make([]byte, 1))
	require.NoError(t, err)
	_, err = v.Read(99, nil) // dispatcher failure, counted
	require.Error(t, err)

	req := httptest.NewRequest("GET", "/", nil)
	rr := httptest.NewRecorder()
	vfs.MetricsHandler().ServeHTTP(rr, req)

	require.Equal(t, 200, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "vfsmux_ops_total")
	assert.Contains(t, body, `vfsmux_ops_total{op="read"}`)
	assert.Contains(t, body, `vfsmux_op_errors_total{op="read"}`)
}
