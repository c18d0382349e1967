package lsw

import (
	json "github.com/goccy/go-json"
)

const ModelInfoVersion uint32 = 1

// InputInfo records one model input signature.
type InputInfo struct {
	Shape []int  `json:"shape"`
	DType string `json:"dtype,omitempty"`
}

// ModelInfo is the JSON payload of the model info section.
type ModelInfo struct {
	Name      string      `json:"name"`
	Seed      uint64      `json:"seed"`
	Inputs    []InputInfo `json:"inputs,omitempty"`
	NIn       int         `json:"n_in"`
	NOut      int         `json:"n_out"`
	Structure string      `json:"structure,omitempty"`
}

func EncodeModelInfo(info ModelInfo) ([]byte, error) {
	return json.Marshal(info)
}

func ParseModelInfo(data []byte) (ModelInfo, error) {
	var info ModelInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return ModelInfo{}, err
	}
	return info, nil
}

// ModelInfo decodes the model info section, if present.
func (f *File) ModelInfo() (ModelInfo, bool, error) {
	sec := f.Section(SectionModelInfo)
	if sec == nil {
		return ModelInfo{}, false, nil
	}
	info, err := ParseModelInfo(f.SectionData(sec))
	if err != nil {
		return ModelInfo{}, true, err
	}
	return info, true, nil
}
