package config

import (
	"os"
	"path/filepath"
	"sync"
)

const (
	// EnvDataDir 数据目录环境变量名
	EnvDataDir = "MEETFLOW_DATA_DIR"
	// DefaultDataDirName 默认数据目录名
	DefaultDataDirName = ".meetflow"
	// ConfigFileName 配置文件名
	ConfigFileName = "config.yaml"
)

var (
	dataDirOnce sync.Once
	dataDirPath string
)

// GetDataDir 获取 meetflow 数据根目录
// 优先读取 MEETFLOW_DATA_DIR 环境变量，默认 ~/.meetflow/
// 此函数是所有 meetflow 数据路径的唯一入口，禁止直接拼接 homeDir + ".meetflow"
func GetDataDir() string {
	dataDirOnce.Do(func() {
		if dir := os.Getenv(EnvDataDir); dir != "" {
			dataDirPath = dir
		} else {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				// 回退到当前目录
				dataDirPath = DefaultDataDirName
				return
			}
			dataDirPath = filepath.Join(homeDir, DefaultDataDirName)
		}
	})
	return dataDirPath
}

// ConfigFilePath 获取配置文件路径
func ConfigFilePath() string {
	return filepath.Join(GetDataDir(), ConfigFileName)
}

// ResetDataDir 重置数据目录缓存（仅用于测试）
func ResetDataDir() {
	dataDirOnce = sync.Once{}
	dataDirPath = ""
}
