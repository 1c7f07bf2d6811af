package main

import (
	"github.com/midweste/wp-git-plugin-repository/cmd/gitplugin"
)

func main() {
	gitplugin.Execute()
}
