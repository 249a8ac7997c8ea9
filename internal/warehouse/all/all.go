// Package all registers every warehouse backend with the factory.
//
// Blank-import it from binaries; config selects which backend is used.
package all

import (
	_ "retaildw/internal/warehouse/mssql"
	_ "retaildw/internal/warehouse/postgres"
	_ "retaildw/internal/warehouse/sqlite"
)
