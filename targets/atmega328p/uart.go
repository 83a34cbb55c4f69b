//go:build atmega328p

package main

import "machine"

var uart = machine.Serial

func initUART() {
	uart.Configure(machine.UARTConfig{BaudRate: serialBaud})
}

// setBaud flushes pending output at the old rate, then reprograms the UART.
func setBaud(baud uint32) error {
	writeUART()
	uart.Configure(machine.UARTConfig{BaudRate: baud})
	return nil
}

// readUART moves received bytes into the firmware's line reader.
func readUART() {
	var buf [16]byte
	for uart.Buffered() > 0 {
		n := 0
		for n < len(buf) && uart.Buffered() > 0 {
			b, err := uart.ReadByte()
			if err != nil {
				break
			}
			buf[n] = b
			n++
		}
		if n == 0 {
			return
		}
		fw.Receive(buf[:n])
	}
}

// writeUART drains the firmware's transmit ring.
func writeUART() {
	var buf [16]byte
	for {
		n := fw.ReadOutput(buf[:])
		if n == 0 {
			return
		}
		uart.Write(buf[:n])
	}
}
