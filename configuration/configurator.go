//
// Copyright 2025 PAYU Network
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//

package configuration

import (
	"os"
	"regexp"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"
)

const (
	ConfigType          = "yaml"
	RegistrarConfigName = "registrar"
	APIConfigName       = "api"
	MigrateConfigName   = "migrate"
)

func LoadRegistrar() *Registrar {
	printWorkingDir()
	actual := &Registrar{}
	if !load(RegistrarConfigName, actual) {
		actual = Registrar{}.Default()
	}
	masked := *actual
	if masked.Chain.PrivateKey != "" {
		masked.Chain.PrivateKey = "<masked>"
	}
	printConfig(masked)
	return actual
}

func LoadAPI() *API {
	printWorkingDir()
	actual := &API{}
	if !load(APIConfigName, actual) {
		actual = API{}.Default()
	}
	masked := *actual
	masked.DB.URL = replacePassword(masked.DB.URL)
	printConfig(masked)
	return actual
}

func LoadMigrate() *Migrate {
	actual := &Migrate{}
	if !load(MigrateConfigName, actual) {
		actual = Migrate{}.Default()
	}
	masked := *actual
	masked.DB.URL = replacePassword(masked.DB.URL)
	printConfig(masked)
	return actual
}

func load(name string, out interface{}) bool {
	v := viper.New()

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("draw")

	v.SetConfigName(name)
	v.SetConfigType(ConfigType)
	v.AddConfigPath(".")
	v.AddConfigPath(".artifacts")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Warnf("config file not found (file=%v.%v). Default configuration is used", name, ConfigType)
		} else {
			log.Error(errors.Wrapf(err, "failed to load config. Default configuration is used"))
		}
		return false
	}
	if err := v.Unmarshal(out); err != nil {
		log.Error(errors.Wrapf(err, "failed to unmarshal config file into configuration structure. Default configuration is used"))
		return false
	}
	return true
}

func printWorkingDir() {
	wd, _ := os.Getwd()
	log.Infof("Working dir: %s", wd)
}

func printConfig(c interface{}) {
	out, err := yaml.Marshal(c)
	if err != nil {
		log.Error(errors.Wrapf(err, "failed to marshal config structure"))
		return
	}
	log.Infof("Loaded configuration: \n %s \n", string(out))
}

func replacePassword(url string) string {
	re := regexp.MustCompile(`^(?P<start>.*)(:(?P<pass>[^@\/:?]+)@)(?P<end>.*)$`)
	result := []byte{}
	if re.MatchString(url) {
		for _, submatches := range re.FindAllStringSubmatchIndex(url, -1) {
			result = re.ExpandString(result, `$start:<masked>@$end`, url, submatches)
		}
		return string(result)
	}
	return url
}
