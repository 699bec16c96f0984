// Package config loads and validates the gateway's YAML configuration
// (spec.md §6) and layers environment-sourced operational overrides on top
// of it.
package config

// Config is the top-level YAML document: `modbus`, `opcua`, `nodes`
// (spec.md §6, unchanged keys/semantics).
type Config struct {
	Modbus ModbusConfig `yaml:"modbus"`
	OPCUA  OPCUAConfig  `yaml:"opcua"`
	Nodes  []NodeConfig `yaml:"nodes"`
}

// ModbusConfig is the `modbus` top-level block.
type ModbusConfig struct {
	PollInterval float64                `yaml:"poll_interval"`
	Slaves       map[string]SlaveConfig `yaml:"slaves"`
}

// SlaveConfig is one link descriptor. Presence of IP implies TCP, else RTU
// (spec.md §6). Both kinds carry ByteSwap/WordSwap. The YAML `port` key is
// overloaded: a TCP number on a TCP slave, a serial device path on an RTU
// one — UnmarshalYAML below disambiguates on the presence of `ip`.
type SlaveConfig struct {
	// TCP
	IP     string `yaml:"ip"`
	Port   int    `yaml:"-"`
	UnitID int    `yaml:"unit_id"`

	// RTU
	SerialPort string `yaml:"-"`
	BaudRate   int    `yaml:"baudrate"`
	Parity     string `yaml:"parity"`
	StopBits   int    `yaml:"stopbits"`
	DataBits   int    `yaml:"databits"`
	SlaveID    int    `yaml:"slave_id"`

	ByteSwap bool `yaml:"byte_swap"`
	WordSwap bool `yaml:"word_swap"`
}

// IsTCP reports whether this slave is a TCP link: "presence of ip implies
// TCP, else RTU" (spec.md §6).
func (s SlaveConfig) IsTCP() bool { return s.IP != "" }

// UnmarshalYAML disambiguates the overloaded `port` key: numeric TCP port
// when `ip` is present, serial device path string otherwise.
func (s *SlaveConfig) UnmarshalYAML(unmarshal func(interface{}) error) error {
	type raw struct {
		IP       string      `yaml:"ip"`
		Port     interface{} `yaml:"port"`
		UnitID   int         `yaml:"unit_id"`
		BaudRate int         `yaml:"baudrate"`
		Parity   string      `yaml:"parity"`
		StopBits int         `yaml:"stopbits"`
		DataBits int         `yaml:"databits"`
		SlaveID  int         `yaml:"slave_id"`
		ByteSwap bool        `yaml:"byte_swap"`
		WordSwap bool        `yaml:"word_swap"`
	}
	var r raw
	if err := unmarshal(&r); err != nil {
		return err
	}

	s.IP = r.IP
	s.UnitID = r.UnitID
	s.BaudRate = r.BaudRate
	s.Parity = r.Parity
	s.StopBits = r.StopBits
	s.DataBits = r.DataBits
	s.SlaveID = r.SlaveID
	s.ByteSwap = r.ByteSwap
	s.WordSwap = r.WordSwap

	if r.IP != "" {
		switch v := r.Port.(type) {
		case int:
			s.Port = v
		}
	} else {
		switch v := r.Port.(type) {
		case string:
			s.SerialPort = v
		}
	}
	return nil
}

// OPCUAConfig is the `opcua` top-level block.
type OPCUAConfig struct {
	Endpoint  string            `yaml:"endpoint"`
	Namespace string            `yaml:"namespace"`
	Users     map[string]string `yaml:"users"`
}

// NodeConfig is one entry of the `nodes` list.
type NodeConfig struct {
	NodeID string           `yaml:"node_id"`
	Name   string           `yaml:"name"`
	Modbus NodeModbusConfig `yaml:"modbus"`
}

// NodeModbusConfig is a node's `modbus` sub-block.
type NodeModbusConfig struct {
	Slave    string `yaml:"slave"`
	Function string `yaml:"function"`
	Address  uint16 `yaml:"address"`
	DataType string `yaml:"datatype"`
	Length   int    `yaml:"length"`
}

// applyDefaults fills in spec.md §6's documented defaults for fields the
// YAML left at their zero value.
func (c *Config) applyDefaults() {
	if c.Modbus.PollInterval == 0 {
		c.Modbus.PollInterval = 1.0
	}
	for name, s := range c.Modbus.Slaves {
		if s.IsTCP() {
			if s.Port == 0 {
				s.Port = 502
			}
			if s.UnitID == 0 {
				s.UnitID = 1
			}
		} else {
			if s.BaudRate == 0 {
				s.BaudRate = 9600
			}
			if s.Parity == "" {
				s.Parity = "N"
			}
			if s.StopBits == 0 {
				s.StopBits = 1
			}
			if s.DataBits == 0 {
				s.DataBits = 8
			}
			if s.SlaveID == 0 {
				s.SlaveID = 1
			}
		}
		c.Modbus.Slaves[name] = s
	}
}
