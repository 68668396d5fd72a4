package inmemdb

import (
	"sync"

	"github.com/trezcool/gradebook/core/grade"
	"github.com/trezcool/gradebook/core/user"
)

type (
	DB struct {
		user   *userTable
		grade  *gradeTable
		period *periodTable
	}

	userTable struct {
		sync.RWMutex
		table map[string]*user.User
	}

	// gradeTable keeps records and their history under one lock so that upserts are atomic.
	gradeTable struct {
		sync.RWMutex
		table   map[string]*grade.Record
		byKey   map[grade.Key]string
		changes map[string][]grade.Change // by record ID, oldest first
	}

	periodTable struct {
		sync.RWMutex
		table map[string]*grade.AssessmentPeriod
	}
)

func Open() *DB {
	return &DB{
		user: &userTable{table: make(map[string]*user.User)},
		grade: &gradeTable{
			table:   make(map[string]*grade.Record),
			byKey:   make(map[grade.Key]string),
			changes: make(map[string][]grade.Change),
		},
		period: &periodTable{table: make(map[string]*grade.AssessmentPeriod)},
	}
}
