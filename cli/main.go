package main

import (
	"context"
	"log"
	"os"
	"os/signal"

	"github.com/GreatValueCreamSoda/gossim/sources"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	reference, err := sources.NewStillImage(settings.ReferenceImage)
	if err != nil {
		log.Fatal(err)
	}
	defer reference.Close()

	if settings.Live() {
		err = runLive(ctx, reference)
	} else {
		err = runVideo(ctx, reference)
	}
	if err != nil {
		stop()
		log.Fatal(err)
	}
}
