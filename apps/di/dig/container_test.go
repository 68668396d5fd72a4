package dig_container

import (
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"go.uber.org/dig"

	"github.com/trezcool/gradebook/core"
	"github.com/trezcool/gradebook/core/grade"
	"github.com/trezcool/gradebook/core/user"
)

func TestNew_inMemory(t *testing.T) {
	t.Setenv("ENV", "TEST")
	t.Setenv("TEST_DBENGINE", EngineInMem)
	t.Setenv("TEST_ENFORCEENTRYWINDOWS", "true")

	type params struct {
		dig.In
		Conf     *core.Config
		DB       *sqlx.DB
		Users    user.Repository
		UserSvc  *user.Service
		GradeSvc *grade.Service
	}

	err := New().Invoke(func(p params) {
		assert.Equal(t, EngineInMem, p.Conf.Database.Engine)
		assert.True(t, p.Conf.Grading.EnforceEntryWindows)
		assert.True(t, p.Conf.TestMode)
		assert.Nil(t, p.DB)
		assert.NotNil(t, p.Users)
		assert.NotNil(t, p.UserSvc)
		assert.NotNil(t, p.GradeSvc)
	})
	if err != nil {
		t.Fatalf("Invoke() failed: %v", err)
	}
}
