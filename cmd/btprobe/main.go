package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/fako1024/gatt"
	"github.com/rainfrog/btprobe"
	"github.com/stianeikeland/go-rpio/v4"
)

type config struct {
	name   string
	serial string
	debug  bool

	sckPin int
	csPin  int
	soPin  int
}

func main() {

	// Parse command line options
	var cfg config
	flag.StringVar(&cfg.name, "name", "RBPThermocouple", "advertised device name")
	flag.StringVar(&cfg.serial, "serial", "SN12345", "serial number exposed via device information service")
	flag.BoolVar(&cfg.debug, "debug", false, "enable debug logging")
	flag.IntVar(&cfg.sckPin, "sck", 2, "clock output pin (BCM)")
	flag.IntVar(&cfg.csPin, "cs", 3, "select output pin (BCM)")
	flag.IntVar(&cfg.soPin, "so", 4, "data input pin (BCM)")
	flag.Parse()

	logger := btprobe.NewDefaultLogger(cfg.debug)

	if err := rpio.Open(); err != nil {
		logger.Fatalf("failed to open GPIO memory access: %s", err)
	}

	sensor := btprobe.NewMAX6675(
		btprobe.NewRPiOutputLine(cfg.sckPin),
		btprobe.NewRPiOutputLine(cfg.csPin),
		btprobe.NewRPiInputLine(cfg.soPin),
	)

	btDevice, err := gatt.NewDevice(btprobe.DefaultBTServerOptions...)
	if err != nil {
		logger.Fatalf("failed to initialize bluetooth device: %s", err)
	}

	peripheral := btprobe.NewPeripheral(
		btprobe.NewGattStack(btDevice, logger),
		btprobe.WithDeviceName(cfg.name),
		btprobe.WithSerialNumber(cfg.serial),
		btprobe.WithLogger(logger),
	)
	if err := peripheral.Initialize(); err != nil {
		logger.Fatalf("failed to initialize peripheral: %s", err)
	}

	sigChan := make(chan os.Signal, 32)
	signal.Notify(sigChan, syscall.SIGTERM)
	signal.Notify(sigChan, os.Interrupt)
	go func() {
		<-sigChan
		logger.Infof("got signal, terminating")
		if err := rpio.Close(); err != nil {
			logger.Errorf("failed to close GPIO memory access: %s", err)
		}
		os.Exit(0)
	}()

	node := btprobe.NewNode(sensor, peripheral, btprobe.WithNodeLogger(logger))
	node.Run()
}
