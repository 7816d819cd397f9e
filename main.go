package main

import (
	"github.com/km-arc/go-wiring/app"
	"github.com/km-arc/go-wiring/framework/console"
)

func main() {
	console.Execute(app.Register)
}
