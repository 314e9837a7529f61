package main

import (
	"github.com/Paintersrp/duet/internal/cli"
	"github.com/Paintersrp/duet/internal/metrics"
)

func main() {
	metrics.EmitBuildInfo()
	cli.Execute()
}
