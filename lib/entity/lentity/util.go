package lentity

import (
	"github.com/lni/dragonboat/v4/logger"
)

var log = logger.GetLogger("entity")
