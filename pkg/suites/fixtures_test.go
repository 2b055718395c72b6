// Copyright 2025 Hedgehog
// SPDX-License-Identifier: Apache-2.0

package suites

const showVersion = `
SONiC Software Version: SONiC.202311_RC.59-1a2b3c4d_Internal
SONiC OS Version: 12
Distribution: Debian 12.5
Kernel: 6.1.0-11-2-amd64
Build commit: 1a2b3c4d
Build date: Tue Mar 12 10:00:00 UTC 2024

Platform: x86_64-mlnx_msn2700-r0
HwSKU: ACS-MSN2700
ASIC: mellanox
ASIC Count: 1
`

const showInterfacesStatus = `  Interface            Lanes    Speed    MTU    FEC    Alias    Vlan    Oper    Admin             Type    Asym PFC
-----------  ---------------  -------  -----  -----  -------  ------  ------  -------  ---------------  ----------
  Ethernet0          0,1,2,3     100G   9100     rs     etp1  routed      up       up  QSFP28 or later         off
  Ethernet4          4,5,6,7     100G   9100    N/A     etp2   trunk      up       up  QSFP28 or later         off
`

const showInterfacesStatusDown = `  Interface            Lanes    Speed    MTU    FEC    Alias    Vlan    Oper    Admin             Type    Asym PFC
-----------  ---------------  -------  -----  -----  -------  ------  ------  -------  ---------------  ----------
  Ethernet0          0,1,2,3     100G   9100     rs     etp1  routed    down     down  QSFP28 or later         off
  Ethernet4          4,5,6,7     100G   9100    N/A     etp2   trunk      up       up  QSFP28 or later         off
`

const showVXLANInterface = `VTEP Information:

	VTEP Name : vtep1, SIP  : 10.1.0.32
	NVO Name  : nvo,  VTEP : vtep1
	Source interface  : Loopback0
`

const showVXLANVLANVNIMap = `+---------+-------+
| VLAN    |   VNI |
+=========+=======+
| Vlan100 | 10100 |
+---------+-------+
Total count : 1
`

const showVXLANTunnel = `+---------------------+-------------+------------------+-------------------+-----------------------------------+
| vxlan tunnel name   | source ip   | destination ip   | tunnel map name   | tunnel map mapping(vni -> vlan)   |
+=====================+=============+==================+===================+===================================+
| vtep1               | 10.1.0.32   |                  | map_10100_Vlan100 | 10100 -> Vlan100                  |
+---------------------+-------------+------------------+-------------------+-----------------------------------+
Total count : 1
`

const mmuconfigDoubleIPool = `Pool: ingress_lossless_pool
----  --------
mode  dynamic
size  12766208
type  ingress
----  --------

Pool: ingress_lossy_pool
----  --------
mode  dynamic
size  6383104
type  ingress
----  --------

Pool: egress_lossless_pool
----  --------
mode  dynamic
size  12766208
type  egress
----  --------

Profile: pg_lossless_100000_5m_profile
----------  ---------------------
dynamic_th  0
pool        ingress_lossless_pool
size        56368
----------  ---------------------
`

const mmuconfigAlpha1 = `Pool: ingress_lossless_pool
----  --------
mode  dynamic
size  12766208
type  ingress
----  --------

Profile: pg_lossless_100000_5m_profile
----------  ---------------------
dynamic_th  1
pool        ingress_lossless_pool
size        56368
----------  ---------------------
`

const runningConfig = `{
  "BUFFER_PROFILE": {
    "pg_lossless_100000_5m_profile": {"dynamic_th": "0", "pool": "ingress_lossless_pool", "size": "56368"}
  },
  "DEVICE_METADATA": {"localhost": {"hostname": "leaf-1"}}
}`

const showMAC = `  No.    Vlan  MacAddress         Port       Type
-----  ------  -----------------  ---------  -------
    1     100  0C:20:12:FE:01:01  Ethernet0  Dynamic
    2     100  0C:20:12:FE:01:02  Ethernet4  Dynamic
Total number of entries 2
`

const showMACEmpty = `  No.    Vlan  MacAddress    Port    Type
-----  ------  ------------  ------  ------
Total number of entries 0
`

const showModulesDPU0Online = `Name  Description             Physical-Slot  Oper-Status  Admin-Status  Serial
----  ----------------------  -------------  -----------  ------------  ------------
DPU0  NVIDIA BlueField-3 DPU  N/A            Online       up            MT2334XZ0A1B
`

const showModulesDPU0Offline = `Name  Description             Physical-Slot  Oper-Status  Admin-Status  Serial
----  ----------------------  -------------  -----------  ------------  ------------
DPU0  NVIDIA BlueField-3 DPU  N/A            Offline      down          MT2334XZ0A1B
`

const showMidplaneDPU0Up = `Name  IP-Address     Reachability
----  -------------  ------------
DPU0  169.254.200.1  True
`

const showMidplaneDPU0Down = `Name  IP-Address     Reachability
----  -------------  ------------
DPU0  169.254.200.1  False
`

const fwutilVersionOld = `Chassis                 Module  Component  Version
----------------------  ------  ---------  -----------------------
x86_64-mlnx_msn2700-r0  N/A     ONIE       2020.11-5.3.0005-9600
                                BIOS       0ACLH004_02.02.010_9600
`

const fwutilVersionNew = `Chassis                 Module  Component  Version
----------------------  ------  ---------  -----------------------
x86_64-mlnx_msn2700-r0  N/A     ONIE       2020.11-5.3.0005-9600
                                BIOS       0ACLH004_02.02.011_9600
`

const fwutilStatusPending = `Chassis                 Module  Component  Firmware       Version (Current/Available)                        Status
----------------------  ------  ---------  -------------  -------------------------------------------------  ------------------
x86_64-mlnx_msn2700-r0  N/A     BIOS       /tmp/bios.rom  0ACLH004_02.02.010_9600 / 0ACLH004_02.02.011_9600  update is required
`

const fwutilStatusStale = `Chassis                 Module  Component  Firmware       Version (Current/Available)                        Status
----------------------  ------  ---------  -------------  -------------------------------------------------  ----------
x86_64-mlnx_msn2700-r0  N/A     BIOS       /tmp/bios.rom  0ACLH004_02.02.010_9600 / 0ACLH004_02.02.010_9600  up-to-date
`

const showVXLANRemoteVTEPUp = `+-----------+-----------+-------------------+--------------+
| SIP       | DIP       | Creation Source   | OperStatus   |
+===========+===========+===================+==============+
| 10.1.0.32 | 10.1.0.34 | EVPN              | oper_up      |
+-----------+-----------+-------------------+--------------+
Total count : 1
`

const showVXLANRemoteVTEPDown = `+-----------+-----------+-------------------+--------------+
| SIP       | DIP       | Creation Source   | OperStatus   |
+===========+===========+===================+==============+
| 10.1.0.32 | 10.1.0.34 | EVPN              | oper_down    |
+-----------+-----------+-------------------+--------------+
Total count : 1
`

const showVXLANRemoteMAC = `+---------+-------------------+--------------+-------+---------+
| VLAN    | MAC               | RemoteVTEP   |   VNI | Type    |
+=========+===================+==============+=======+=========+
| Vlan100 | 0C:20:12:FE:02:01 | 10.1.0.34    | 10100 | dynamic |
+---------+-------------------+--------------+-------+---------+
Total count : 1
`
