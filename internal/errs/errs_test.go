package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	t.Run("classified error", func(t *testing.T) {
		err := New(KindValidation, "query 不能为空")
		assert.Equal(t, KindValidation, KindOf(err))
	})

	t.Run("wrapped in fmt chain", func(t *testing.T) {
		inner := New(KindServiceUnavailable, "es 不可达")
		err := fmt.Errorf("搜索失败: %w", inner)
		assert.Equal(t, KindServiceUnavailable, KindOf(err))
	})

	t.Run("plain error defaults to internal", func(t *testing.T) {
		assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
	})

	t.Run("nil defaults to internal", func(t *testing.T) {
		assert.Equal(t, KindInternal, KindOf(nil))
	})
}

func TestWrap(t *testing.T) {
	inner := errors.New("connection refused")
	err := Wrap(KindServiceUnavailable, "es 查询失败", inner)

	require.Error(t, err)
	assert.Equal(t, KindServiceUnavailable, KindOf(err))
	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), "es 查询失败")
	assert.Contains(t, err.Error(), "connection refused")
}

func TestNewf(t *testing.T) {
	err := Newf(KindValidation, "top_k 必须在 [%d, %d] 范围内", 1, 50)
	assert.Equal(t, KindValidation, KindOf(err))
	assert.Equal(t, "top_k 必须在 [1, 50] 范围内", err.Error())
}
