package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"fablock/host/config"
	"fablock/host/lock"
)

var (
	cfgPath = flag.String("cfg", "", "Path to YAML config file")
	device  = flag.String("device", "", "Serial device path (overrides the config)")
	baud    = flag.Int("baud", 0, "Baud rate (overrides the config)")
)

func main() {
	flag.Parse()

	cfg := config.Default()
	if *cfgPath != "" {
		var err error
		if cfg, err = config.Load(*cfgPath); err != nil {
			log.Fatalf("Error: %v", err)
		}
	}
	if *device != "" {
		cfg.Serial.Device = *device
	}
	if *baud != 0 {
		cfg.Serial.Baud = *baud
	}

	fmt.Println("fablock host console")
	fmt.Println("====================")
	fmt.Println()

	fmt.Printf("Connecting to lock on %s...\n", cfg.Serial.Device)
	client, err := lock.Connect(cfg.SerialPort())
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
	defer client.Close()
	client.SetTimeout(cfg.ReplyTimeout)

	v, err := client.Version()
	if err != nil {
		log.Fatalf("Error: lock did not answer: %v", err)
	}
	fmt.Printf("Connected, protocol version %d\n", v)

	console := NewConsole(client, os.Stdout)
	msgs, cancel := client.Subscribe()
	defer cancel()
	go func() {
		for msg := range msgs {
			console.Show(msg)
		}
	}()

	fmt.Println("Enter commands (type 'help' for available commands, 'quit' to exit):")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		if err := console.Execute(scanner.Text()); err != nil {
			if errors.Is(err, errQuit) {
				fmt.Println("Goodbye!")
				return
			}
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
	}

	if err := scanner.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "Error reading input: %v\n", err)
		os.Exit(1)
	}
}
