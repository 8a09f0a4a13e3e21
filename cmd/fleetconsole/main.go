package main

import "github.com/joho/godotenv"

func main() {
	// .env is optional; flags and real env vars win.
	_ = godotenv.Load()
	Execute()
}
