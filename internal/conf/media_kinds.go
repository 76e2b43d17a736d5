package conf

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/ovframework/ovf/internal/media"
)

// MediaKinds is the mediaKinds parameter.
type MediaKinds []media.Kind

// MarshalJSON implements json.Marshaler.
func (k MediaKinds) MarshalJSON() ([]byte, error) {
	out := make([]string, len(k))
	for i, v := range k {
		out[i] = v.String()
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler.
func (k *MediaKinds) UnmarshalJSON(b []byte) error {
	var in []string
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}

	out := MediaKinds{}

	for _, name := range in {
		v, err := media.ParseKind(name)
		if err != nil {
			return err
		}
		if v == media.KindUnknown {
			return fmt.Errorf("invalid media kind: '%s'", name)
		}
		if slices.Contains(out, v) {
			return fmt.Errorf("media kind '%s' set twice", name)
		}
		out = append(out, v)
	}

	*k = out
	return nil
}

// UnmarshalEnv implements env.Unmarshaler.
func (k *MediaKinds) UnmarshalEnv(_ string, v string) error {
	byts, _ := json.Marshal(strings.Split(v, ","))
	return k.UnmarshalJSON(byts)
}

// Codecs is the codecs parameter.
type Codecs []media.Codec

// MarshalJSON implements json.Marshaler.
func (c Codecs) MarshalJSON() ([]byte, error) {
	out := make([]string, len(c))
	for i, v := range c {
		out[i] = v.String()
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *Codecs) UnmarshalJSON(b []byte) error {
	var in []string
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}

	out := Codecs{}

	for _, name := range in {
		v, err := media.ParseCodec(name)
		if err != nil {
			return err
		}
		if v == media.CodecUnknown {
			return fmt.Errorf("invalid codec: '%s'", name)
		}
		if slices.Contains(out, v) {
			return fmt.Errorf("codec '%s' set twice", name)
		}
		out = append(out, v)
	}

	*c = out
	return nil
}

// UnmarshalEnv implements env.Unmarshaler.
func (c *Codecs) UnmarshalEnv(_ string, v string) error {
	if v == "" {
		*c = Codecs{}
		return nil
	}
	byts, _ := json.Marshal(strings.Split(v, ","))
	return c.UnmarshalJSON(byts)
}
