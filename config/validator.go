package config

import "fmt"

// Validator 由各模块配置实现（ozzo-validation 规则）
type Validator interface {
	Validate() error
}

// ValidateAll 依次校验，返回第一个失败
func ValidateAll(validators ...Validator) error {
	for _, v := range validators {
		if v == nil {
			continue
		}
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ValidateSection 校验 key 段解码后的配置，错误带上段名
func ValidateSection(key string, v Validator) error {
	if err := ValidateAll(v); err != nil {
		return fmt.Errorf("invalid %s config: %w", key, err)
	}
	return nil
}
