package main

import "github.com/eleven-am/handoff-backend/internal/bootstrap"

func main() {
	bootstrap.Run()
}
