/*
Copyright 2020 The Kubermatic Kubernetes Platform contributors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"k8c.io/gtag/pkg/action"
	"k8c.io/gtag/pkg/types"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
)

// These variables get fed by ldflags during compilation.
var (
	version = "dev"
)

func main() {
	opts := types.Options{}
	opts.AddFlags(pflag.CommandLine)

	printVersion := pflag.Bool("version", false, "Print version and exit")
	pflag.Parse()

	if *printVersion {
		fmt.Printf("gtag %s\n", version)
		return
	}

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if opts.Verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := opts.Parse(ctx); err != nil {
		log.Fatalf("Invalid options: %v", err)
	}

	if err := action.Execute(ctx, log.WithField("repository", opts.Repository), &opts); err != nil {
		log.Errorf("Run failed: %v", err)
		cancel()
		os.Exit(1)
	}
}
