package dsn

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pmhub/pmhub/internal/config"
)

func TestCreate(t *testing.T) {
	base := config.DB{
		Host:     "db",
		Port:     3306,
		User:     "pm",
		Password: "secret",
		Name:     "pmhub",
		Extras:   "parseTime=True",
	}

	tests := []struct {
		name   string
		engine string
		file   string
		port   int
		want   string
	}{
		{name: "mysql", engine: config.EngineMySQL, port: 3306, want: "pm:secret@tcp(db:3306)/pmhub?parseTime=True"},
		{name: "postgres", engine: config.EnginePostgres, port: 5432, want: "postgres://pm:secret@db:5432/pmhub?parseTime=True"},
		{name: "sqlite file", engine: config.EngineSQLite, file: "pm.db", want: "pm.db"},
		{name: "sqlite memory", engine: config.EngineSQLite, want: ":memory:"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := base
			db.GormEngine = tt.engine
			db.File = tt.file
			db.Port = tt.port

			assert.Equal(t, tt.want, Create(&db))
		})
	}
}
