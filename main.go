package main

import "github.com/frahmantamala/paygw-chargebee/cmd"

func main() {
	cmd.Execute()
}
