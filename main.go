package main

import (
	"fmt"

	_ "github.com/agentuity/go-cachekit/cache"
	_ "github.com/agentuity/go-cachekit/codec"
	_ "github.com/agentuity/go-cachekit/env"
	_ "github.com/agentuity/go-cachekit/logger"
	_ "github.com/agentuity/go-cachekit/resilience"
)

func main() {
	fmt.Println("Hi")
}
