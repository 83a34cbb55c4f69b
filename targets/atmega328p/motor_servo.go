//go:build atmega328p && motor_servo

package main

import "fablock/core"

func newMotor(sched *core.Scheduler) core.Motor {
	return core.NewServoMotor(sched, gpioDriver{}, pinServo)
}
