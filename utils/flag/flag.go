/*
flag Package set up cli flags shared across services

Usage:

	Flags listed in this package are shared across boundaries and service-agnostic
	For service dependent flags please define in their respective package
	Parse must be called once from main, never from init, so that test
	binaries can still register their own flags
*/

package flag

import (
	"flag"
)

const (
	APIServer = "api_server"
	Harvester = "harvester"
)

var (
	IsDevelopment *bool
	ServiceName   *string
)

func init() {
	IsDevelopment = flag.Bool("dev", true, "set to true if the current run is for development. default value is true")
	ServiceName = flag.String("service", Harvester, "'harvester' or 'api_server'")
}

// Parse parses the shared command line flags.
func Parse() {
	flag.Parse()
}
