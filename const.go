// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2025.11.3
//

package gnsspos

const (
	PI   = 3.1415926535897932  // Pi
	C    = 2.99792458e8        // Speed of light [m/s]
	Re   = 6378137.0           // Earth's radius [m]
	Fe   = 1.0 / 298.257223563 // Earth's flattening
	OMGE = 7.2921151467e-5     // Earth rotation angular velocity [rad/s]
	Mue  = 3.986005e14         // Earth gravitational constant [m^3/s^2]
	EPS  = 1e-6                // Observables below this value count as missing
)
