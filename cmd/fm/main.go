// fm is the FlightMode command line interface: an offline-first focus
// session tracker with eventually consistent cloud backup.
package main

import "os"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
