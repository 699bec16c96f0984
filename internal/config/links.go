package config

import (
	"time"

	"go.uber.org/zap"

	"github.com/neoedge/gateway/internal/gateway"
	"github.com/neoedge/gateway/internal/modbus"
)

// BuildLinks constructs one modbus.Link per distinct physical transport and
// returns it keyed by every slave name that addresses it. Two RTU slave
// entries that name the same serial port share one *modbus.Link instance —
// the shared serial connection and its mutex, nothing else (spec.md §9
// REDESIGN FLAGS, decided in SPEC_FULL.md §12): validate has already
// rejected the case where they disagree on swap flags. Each slave keeps its
// own unit id; ToTagSpecs stamps every tag with the unit id of the slave it
// belongs to, so a shared rtuLink still addresses each slave correctly
// (TagMapping.UnitID), mirroring how original_source/modbus_rtu.py shares
// only its lock across handlers that each keep their own self.slave_id.
func BuildLinks(cfg *Config, log *zap.Logger) map[string]modbus.Link {
	links := make(map[string]modbus.Link, len(cfg.Modbus.Slaves))
	bySerialPort := make(map[string]modbus.Link)

	for name, s := range cfg.Modbus.Slaves {
		if s.IsTCP() {
			links[name] = modbus.NewTCPLink(modbus.TCPConfig{
				Name:     name,
				Host:     s.IP,
				Port:     s.Port,
				ByteSwap: s.ByteSwap,
				WordSwap: s.WordSwap,
				Timeout:  5 * time.Second,
			}, log)
			continue
		}

		if existing, ok := bySerialPort[s.SerialPort]; ok {
			links[name] = existing
			continue
		}
		link := modbus.NewRTULink(modbus.RTUConfig{
			Name:     name,
			Port:     s.SerialPort,
			BaudRate: s.BaudRate,
			DataBits: s.DataBits,
			StopBits: s.StopBits,
			Parity:   parityCode(s.Parity),
			Timeout:  time.Second,
			ByteSwap: s.ByteSwap,
			WordSwap: s.WordSwap,
		}, log)
		bySerialPort[s.SerialPort] = link
		links[name] = link
	}

	return links
}

// parityCode maps the config's N/E/O letter to the RTU link's none/odd/even
// strings.
func parityCode(p string) string {
	switch p {
	case "E", "e":
		return "even"
	case "O", "o":
		return "odd"
	default:
		return "none"
	}
}

// ToTagSpecs converts the `nodes` block into gateway.TagSpec values for
// gateway.Build, stamping each tag with the unit id of the slave it
// references — the addressing that keeps slaves sharing one RTU port
// distinguishable (see BuildLinks).
func ToTagSpecs(cfg *Config) []gateway.TagSpec {
	specs := make([]gateway.TagSpec, 0, len(cfg.Nodes))
	for _, n := range cfg.Nodes {
		slave := cfg.Modbus.Slaves[n.Modbus.Slave]
		specs = append(specs, gateway.TagSpec{
			NodeID:   n.NodeID,
			Name:     n.Name,
			Link:     n.Modbus.Slave,
			UnitID:   slaveUnitID(slave),
			Function: modbus.Function(n.Modbus.Function),
			Address:  n.Modbus.Address,
			DataType: modbus.DataType(n.Modbus.DataType),
			Length:   n.Modbus.Length,
		})
	}
	return specs
}

// slaveUnitID returns the Modbus unit address a slave answers to: UnitID
// for TCP, SlaveID for RTU (spec.md §6 schema). A reference to an undefined
// slave (already rejected by Validate before this runs) yields 0.
func slaveUnitID(s SlaveConfig) byte {
	if s.IsTCP() {
		return byte(s.UnitID)
	}
	return byte(s.SlaveID)
}

// PollInterval returns the configured polling interval as a duration.
func PollInterval(cfg *Config) time.Duration {
	return time.Duration(cfg.Modbus.PollInterval * float64(time.Second))
}
