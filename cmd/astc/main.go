// Command astc compiles JavaScript source into a packed AST, for
// inspecting and exercising the ast package from the command line.
package main

import (
	"github.com/tinyjsvm/ast/cmd/astc/internal/astccmd"
)

func main() {
	astccmd.Run()
}
