package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/iadeleke/domisafe/config"
	"github.com/iadeleke/domisafe/services"
	"github.com/iadeleke/domisafe/services/api"
	"github.com/iadeleke/domisafe/services/control"
	"github.com/iadeleke/domisafe/services/sampler"
)

func registerServices() {
	// register available services
	services.Register(&api.Service{})
	services.Register(&control.Service{})
	services.Register(&sampler.Service{})
}

var allServices = []string{"control", "sampler", "api"}

func usage() {
	fmt.Println("Usage: domisafe [options] [SERVICE...]")
	fmt.Println()
	fmt.Println("Services: control sampler api (default: all)")
	fmt.Println()
	fmt.Println("Options:")
	flag.PrintDefaults()
}

func main() {
	configPath := flag.String("config", config.ConfigPath("domisafe.yml"), "configuration file")
	flag.Usage = usage
	flag.Parse()

	services.SetupLogging()

	file, err := os.Open(*configPath)
	if err != nil {
		log.Fatalln("Error opening config:", err)
	}
	conf, err := config.OpenReader(file)
	file.Close()
	if err != nil {
		log.Fatalln("Error reading config:", err)
	}
	services.Config = conf

	ss := flag.Args()
	if len(ss) == 0 {
		ss = allServices
	}

	registerServices()
	services.Launch(ss)

	// run until interrupted, then clean up
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	s := <-sig
	log.Println("Received signal:", s)
	services.Shutdown()
}
