package dummydb

import (
	"sync"

	"github.com/trezcool/mtihani/core/catalog"
	"github.com/trezcool/mtihani/core/session"
	"github.com/trezcool/mtihani/core/user"
)

type (
	DB struct {
		user    *userTable
		catalog *catalogTable
		session *sessionTable
	}

	userTable struct {
		sync.RWMutex
		table map[string]*user.User
	}

	catalogTable struct {
		sync.RWMutex
		table map[string]*catalog.Test
	}

	sessionTable struct {
		sync.RWMutex
		links    map[string]*session.Link
		attempts map[string]*session.Attempt
		answers  map[string]map[string]int // attemptID -> questionID -> option
	}
)

func Open() (*DB, error) {
	db := &DB{
		user:    &userTable{table: make(map[string]*user.User)},
		catalog: &catalogTable{table: make(map[string]*catalog.Test)},
		session: &sessionTable{
			links:    make(map[string]*session.Link),
			attempts: make(map[string]*session.Attempt),
			answers:  make(map[string]map[string]int),
		},
	}
	return db, nil
}
