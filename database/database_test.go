package database_test

import (
	"errors"
	"net"
	"testing"

	_ "github.com/lib/pq"

	"github.com/hamzali/surge"
	"github.com/hamzali/surge/database"
)

func TestNew(t *testing.T) {
	t.Run("should fail when the database is unreachable", func(st *testing.T) {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			st.Fatalf("could not reserve a port: %v", err)
		}

		port := ln.Addr().(*net.TCPAddr).Port
		if err := ln.Close(); err != nil {
			st.Fatalf("could not free the port: %v", err)
		}

		_, err = database.New("127.0.0.1", "postgres", "postgres", "postgres", port, false)
		if err == nil {
			st.Fatal("expected an error but got nil")
		}
	})
}

func TestUninitializedDatabase(t *testing.T) {
	t.Run("should refuse schema setup before init", func(st *testing.T) {
		db := &database.Database{}

		if err := db.EnsureSchema(); !errors.Is(err, database.ErrDBNotInitialized) {
			st.Fatalf("expected %v but got %v", database.ErrDBNotInitialized, err)
		}
	})

	t.Run("should refuse saving a run before init", func(st *testing.T) {
		db := &database.Database{}

		if err := db.SaveRun(&surge.Run{}); !errors.Is(err, database.ErrDBNotInitialized) {
			st.Fatalf("expected %v but got %v", database.ErrDBNotInitialized, err)
		}
	})

	t.Run("should close quietly without a connection", func(st *testing.T) {
		db := &database.Database{}

		db.Close()
	})
}
