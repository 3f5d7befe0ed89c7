package main

import (
	"context"
	"time"

	"rtuframe-go/bus"
	"rtuframe-go/services/config"
	"rtuframe-go/services/heartbeat"
	"rtuframe-go/services/rtu"
)

func main() {
	// Allow USB CDC to enumerate before we print.
	time.Sleep(2 * time.Second)
	println("boot")

	ctx := context.WithValue(context.Background(), config.CtxDeviceKey, "pico")
	b := bus.NewBus(8)

	go rtu.Run(ctx, b.NewConnection("rtu"), nil)
	_ = heartbeat.New().Start(ctx, b.NewConnection("heartbeat"))
	config.NewConfigService().Start(ctx, b.NewConnection("config"))

	select {}
}
