package main

import (
	"github.com/MeridianTrust/MeridianTrust-Backend/api"
)

var envPath string = "."

func main() {

	server := api.NewServer(envPath)
	server.Start()
}
