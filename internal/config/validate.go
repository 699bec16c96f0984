package config

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/neoedge/gateway/internal/modbus"
)

// validDataTypes mirrors original_source/modbus_base.py:validate_config's
// literal enum check.
var validDataTypes = map[string]bool{
	"int16": true, "uint16": true, "int32": true, "uint32": true,
	"float": true, "double": true, "bool": true, "string": true,
}

// Validate parses data as a gateway config document and reports (ok,
// message) per spec.md §6's validation rules — used both at startup and by
// the /upload_config HTTP handler before replacing the active file.
func Validate(data []byte) (bool, string) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return false, fmt.Sprintf("YAML syntax error: %v", err)
	}
	if err := validate(&cfg); err != nil {
		return false, err.Error()
	}
	return true, ""
}

// validate applies the rejection conditions spec.md §6 lists, returning an
// error wrapping modbus.ErrConfigInvalid on the first violation found.
func validate(cfg *Config) error {
	missingModbus := cfg.Modbus.Slaves == nil && cfg.Modbus.PollInterval == 0
	missingOPCUA := cfg.OPCUA.Endpoint == "" && cfg.OPCUA.Namespace == "" && cfg.OPCUA.Users == nil
	missingNodes := cfg.Nodes == nil
	if missingModbus || missingOPCUA || missingNodes {
		return fmt.Errorf("%w: missing top-level keys: modbus, opcua, or nodes", modbus.ErrConfigInvalid)
	}
	if len(cfg.Modbus.Slaves) == 0 {
		return fmt.Errorf("%w: no modbus slaves defined", modbus.ErrConfigInvalid)
	}

	portPaths := make(map[string]SlaveConfig)
	for name, s := range cfg.Modbus.Slaves {
		if !s.IsTCP() && s.SerialPort == "" {
			return fmt.Errorf("%w: slave %q needs an 'ip' (TCP) or 'port' (RTU)", modbus.ErrConfigInvalid, name)
		}
		if !s.IsTCP() {
			if existing, ok := portPaths[s.SerialPort]; ok {
				if existing.ByteSwap != s.ByteSwap || existing.WordSwap != s.WordSwap {
					return fmt.Errorf("%w: slave %q shares serial port %q with a different slave but conflicting byte_swap/word_swap flags", modbus.ErrConfigInvalid, name, s.SerialPort)
				}
			}
			portPaths[s.SerialPort] = s
		}
	}

	for _, node := range cfg.Nodes {
		if node.NodeID == "" || node.Name == "" || node.Modbus.Slave == "" {
			return fmt.Errorf("%w: node %q missing required keys", modbus.ErrConfigInvalid, node.Name)
		}
		if _, ok := cfg.Modbus.Slaves[node.Modbus.Slave]; !ok {
			return fmt.Errorf("%w: node %q references undefined slave %q", modbus.ErrConfigInvalid, node.Name, node.Modbus.Slave)
		}
		if !validDataTypes[node.Modbus.DataType] {
			return fmt.Errorf("%w: invalid datatype %q in node %q", modbus.ErrConfigInvalid, node.Modbus.DataType, node.Name)
		}
	}

	return nil
}
