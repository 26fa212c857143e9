// Package main is entrypoint for the application
package main

import (
	"callnotify/cmd"
	"callnotify/pkg/log"
)

func main() {
	cmd.Run()
	log.Info("callnotify end")
}
