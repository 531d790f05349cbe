package fancontrol

// Device is the write side of one fan: a raw duty code plus the
// manual/automatic control mode.
//
// Implementations are called only from the control loop (and its cleanup,
// which runs on the same goroutine). Close is best-effort and must leave
// the hardware safe to abandon.
type Device interface {
	SetMode(Mode) error
	SetSpeed(duty uint8) error
	Close() error
}

// Backend names accepted in Config.Backend.
const (
	BackendPWM  = "pwm"
	BackendGPIO = "gpio"
)

var openPWMFn = func(dutyPath string) (Device, error) { return OpenPWM(dutyPath) }
var openGPIOFn = openGPIO
