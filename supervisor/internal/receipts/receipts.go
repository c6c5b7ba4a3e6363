// Package receipts builds the outbound receipts every supervisor script
// sends to device_backend and monitor, grounded on the receipt
// constructors each script file references (e.g. health.py's
// `PreparedReceipts.get_params`, `PreparedReceipts.down`).
package receipts

import (
	"github.com/snd-kmd/caenhv/core/receipt"
	"github.com/snd-kmd/caenhv/core/router"
)

// GetParams builds a device_backend `params` receipt, optionally scoped
// to selectParams.
func GetParams(sender string, selectParams []string) *receipt.Receipt {
	params := map[string]interface{}{}
	if len(selectParams) > 0 {
		sel := make([]interface{}, len(selectParams))
		for i, p := range selectParams {
			sel[i] = p
		}
		params["select_params"] = sel
	}
	return receipt.New(sender, router.ServiceDeviceBackend, "params", params)
}

// Down builds a device_backend `down` receipt.
func Down(sender string) *receipt.Receipt {
	return receipt.New(sender, router.ServiceDeviceBackend, "down", nil)
}

// SetVoltage builds a device_backend `set_voltage` receipt.
func SetVoltage(sender string, target float64, fromUser bool) *receipt.Receipt {
	return receipt.New(sender, router.ServiceDeviceBackend, "set_voltage", map[string]interface{}{
		"target_voltage": target,
		"from_user":       fromUser,
	})
}

// GetVoltage builds a device_backend `get_voltage` receipt.
func GetVoltage(sender string) *receipt.Receipt {
	return receipt.New(sender, router.ServiceDeviceBackend, "get_voltage", nil)
}

// LastUserVoltage builds a device_backend `last_user_voltage` receipt.
func LastUserVoltage(sender string) *receipt.Receipt {
	return receipt.New(sender, router.ServiceDeviceBackend, "last_user_voltage", nil)
}

// SetUserPermission builds a device_backend `set_user_permission` receipt.
func SetUserPermission(sender string, enable bool) *receipt.Receipt {
	return receipt.New(sender, router.ServiceDeviceBackend, "set_user_permission", map[string]interface{}{
		"enable_user_set": enable,
	})
}

// SendParams builds a monitor `send_params` receipt.
func SendParams(sender string, params map[string]interface{}, measurementTime int64) *receipt.Receipt {
	return receipt.New(sender, router.ServiceMonitor, "send_params", map[string]interface{}{
		"params":           params,
		"measurement_time": measurementTime,
	})
}
