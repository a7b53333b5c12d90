// Package model 定义了与数据库表对应的 Go 结构体。
package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
)

// StringSlice 以 JSON 形式存入数据库的字符串数组（MySQL 没有数组类型）。
type StringSlice []string

// Value 实现 driver.Valuer 接口。
func (s StringSlice) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(s))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan 实现 sql.Scanner 接口。
func (s *StringSlice) Scan(value interface{}) error {
	if value == nil {
		*s = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, (*[]string)(s))
	case string:
		return json.Unmarshal([]byte(v), (*[]string)(s))
	default:
		return fmt.Errorf("cannot scan %T into StringSlice", value)
	}
}

// Vector 以 JSON 形式存入数据库的浮点向量。
// 可为 NULL：没有可用摘要的记录不携带向量，也绝不参与近邻检索。
type Vector []float32

// Value 实现 driver.Valuer 接口。NULL 语义由 nil 表达。
func (v Vector) Value() (driver.Value, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal([]float32(v))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan 实现 sql.Scanner 接口。
func (v *Vector) Scan(value interface{}) error {
	if value == nil {
		*v = nil
		return nil
	}
	switch raw := value.(type) {
	case []byte:
		return json.Unmarshal(raw, (*[]float32)(v))
	case string:
		return json.Unmarshal([]byte(raw), (*[]float32)(v))
	default:
		return errors.New("unsupported source type for Vector")
	}
}
