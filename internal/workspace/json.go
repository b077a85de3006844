package workspace

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/GoodnightSam/JGL-Assistant/internal/services"
)

// ReadJSON reads and decodes a JSON artifact into T.
func ReadJSON[T any](ws Reader, h *Handle, kind Kind) (*T, error) {
	data, err := ws.Read(h, kind)
	if err != nil {
		return nil, err
	}
	var value T
	decoder := json.NewDecoder(bytes.NewReader(data))
	if err := decoder.Decode(&value); err != nil {
		return nil, services.Wrap(services.ErrStorage, "workspace", "decode",
			fmt.Sprintf("artifact %s for %s", kind, h.Key), err)
	}
	return &value, nil
}

// WriteJSON encodes a value as indented JSON and writes it atomically.
func WriteJSON(ws Writer, h *Handle, kind Kind, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return services.Wrap(services.ErrStorage, "workspace", "encode",
			fmt.Sprintf("artifact %s for %s", kind, h.Key), err)
	}
	return ws.Write(h, kind, append(data, '\n'))
}
