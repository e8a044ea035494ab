// Package main runs the board demo: a small web site whose ULP form hands a blink count to the
// co-processor before the main processor goes to sleep.
package main

import (
	"go.viam.com/utils"

	"go.viam.com/boarddemo/logging"
	"go.viam.com/boarddemo/web/server"
)

var logger = logging.NewDebugLogger("entrypoint")

func main() {
	utils.ContextualMain(server.RunServer, logger)
}
