// Package register registers all board models.
package register

import (
	// for boards.
	_ "go.viam.com/boarddemo/components/board/fake"
	_ "go.viam.com/boarddemo/components/board/genericlinux"
)
