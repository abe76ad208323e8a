package util

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// LoadABI parses a plain ABI JSON file (an array of ABI entries).
func LoadABI(path string) (abi.ABI, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return abi.ABI{}, fmt.Errorf("failed to read ABI file %s: %w", path, err)
	}
	parsed, err := abi.JSON(strings.NewReader(string(data)))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("failed to parse ABI %s: %w", path, err)
	}
	return parsed, nil
}

// hardhatArtifact mirrors the subset of a Hardhat compilation artifact we
// need: the "abi" field, everything else (bytecode, source map, ...) is
// ignored.
type hardhatArtifact struct {
	ABI json.RawMessage `json:"abi"`
}

// LoadABIFromHardhatArtifact parses the ABI embedded in a Hardhat artifact
// JSON file, the format the Chainlink aggregator/forwarder and Pool
// artifacts ship in.
func LoadABIFromHardhatArtifact(path string) (abi.ABI, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return abi.ABI{}, fmt.Errorf("failed to read artifact %s: %w", path, err)
	}
	var artifact hardhatArtifact
	if err := json.Unmarshal(data, &artifact); err != nil {
		return abi.ABI{}, fmt.Errorf("failed to parse artifact %s: %w", path, err)
	}
	parsed, err := abi.JSON(strings.NewReader(string(artifact.ABI)))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("failed to parse embedded ABI %s: %w", path, err)
	}
	return parsed, nil
}

// Hex2Bytes decodes a hex string, tolerating an optional "0x" prefix.
func Hex2Bytes(s string) []byte {
	s = strings.TrimPrefix(s, "0x")
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil
	}
	return b
}
