//go:build rp2040 || rp2350

package platform

import (
	"errors"
	"machine"

	"github.com/jangala-dev/tinygo-uartx/uartx"
	"tinygo.org/x/drivers"

	"rtuframe-go/types"
)

// Default binds uart0 and uart1 on their board-default pins.
func Default() Board {
	return NewStreamBoard(map[string]drivers.UART{
		"uart0": uartx.UART0,
		"uart1": uartx.UART1,
	}, configureRP2)
}

func configureRP2(id string, pc types.PortConfig) error {
	var (
		hw     *uartx.UART
		tx, rx machine.Pin
	)
	switch id {
	case "uart0":
		hw, tx, rx = uartx.UART0, machine.UART0_TX_PIN, machine.UART0_RX_PIN
	case "uart1":
		hw, tx, rx = uartx.UART1, machine.UART1_TX_PIN, machine.UART1_RX_PIN
	default:
		return errors.New("no such uart")
	}
	if err := hw.Configure(uartx.UARTConfig{BaudRate: pc.Baud, TX: tx, RX: rx}); err != nil {
		return err
	}
	var par uartx.UARTParity
	switch pc.Parity {
	case types.ParityEven:
		par = uartx.ParityEven
	case types.ParityOdd:
		par = uartx.ParityOdd
	default:
		par = uartx.ParityNone
	}
	return hw.SetFormat(pc.DataBits, pc.StopBits, par)
}
