// Copyright 2025 Hedgehog
// SPDX-License-Identifier: Apache-2.0

package sonic

const showVersion = `
SONiC Software Version: SONiC.202311_RC.59-1a2b3c4d_Internal
SONiC OS Version: 12
Distribution: Debian 12.5
Kernel: 6.1.0-11-2-amd64
Build commit: 1a2b3c4d
Build date: Tue Mar 12 10:00:00 UTC 2024
Built by: builder@build-sonic-ci02

Platform: x86_64-mlnx_msn2700-r0
HwSKU: ACS-MSN2700
ASIC: mellanox
ASIC Count: 1
Serial Number: MT1234X56789
Model Number: MSN2700-CS2FO
Hardware Revision: A1
Uptime: 10:00:00 up 1 day,  2:03,  1 user,  load average: 0.50, 0.60, 0.70
Date: Tue 12 Mar 2024 10:00:00

Docker images:
REPOSITORY                    TAG                       IMAGE ID            SIZE
docker-syncd-mlnx             latest                    1a2b3c4d5e6f        880MB
`

const showInterfacesStatus = `  Interface            Lanes    Speed    MTU    FEC    Alias    Vlan    Oper    Admin             Type    Asym PFC
-----------  ---------------  -------  -----  -----  -------  ------  ------  -------  ---------------  ----------
  Ethernet0          0,1,2,3     100G   9100     rs     etp1  routed      up       up  QSFP28 or later         off
  Ethernet4          4,5,6,7     100G   9100    N/A     etp2   trunk    down     down              N/A         off
`

const showInterfacesStatusUp = `  Interface            Lanes    Speed    MTU    FEC    Alias    Vlan    Oper    Admin             Type    Asym PFC
-----------  ---------------  -------  -----  -----  -------  ------  ------  -------  ---------------  ----------
  Ethernet0          0,1,2,3     100G   9100     rs     etp1  routed      up       up  QSFP28 or later         off
  Ethernet4          4,5,6,7     100G   9100    N/A     etp2   trunk      up       up  QSFP28 or later         off
`

const showMAC = `  No.    Vlan  MacAddress         Port       Type
-----  ------  -----------------  ---------  -------
    1     100  0C:20:12:FE:01:01  Ethernet0  Dynamic
    2     100  0C:20:12:FE:01:02  Ethernet4  Static
Total number of entries 2
`

const showMACEmpty = `  No.    Vlan  MacAddress    Port    Type
-----  ------  ------------  ------  ------
Total number of entries 0
`

const fwutilShowVersion = `Chassis                   Module    Component    Version
------------------------  --------  -----------  -----------------------
x86_64-mlnx_msn2700-r0    N/A       ONIE         2020.11-5.3.0005-9600
                                    SSD          0202-000
                                    BIOS         0ACLH004_02.02.010_9600
                                    CPLD1        CPLD000085_REV2000
`

const fwutilShowStatus = `Chassis                 Module  Component  Firmware              Version (Current/Available)                        Status
----------------------  ------  ---------  --------------------  -------------------------------------------------  ------------------
x86_64-mlnx_msn2700-r0  N/A     ONIE       /tmp/onie-update.bin  2020.11-5.3.0005-9600 / 2020.11-5.3.0006-9600      update is required
                                BIOS       /tmp/bios.rom         0ACLH004_02.02.010_9600 / 0ACLH004_02.02.010_9600  up-to-date
`

const showModulesStatus = `Name  Description             Physical-Slot  Oper-Status  Admin-Status  Serial
----  ----------------------  -------------  -----------  ------------  ------------
DPU0  NVIDIA BlueField-3 DPU  N/A            Online       up            MT2334XZ0A1B
DPU1  NVIDIA BlueField-3 DPU  N/A            Offline      down          MT2334XZ0A1C
`

const showMidplaneStatus = `  Name       IP-Address    Reachability
------  ---------------  --------------
  DPU0  169.254.200.1              True
  DPU1  169.254.200.2             False
`

const showMidplaneStatusUp = `  Name       IP-Address    Reachability
------  ---------------  --------------
  DPU0  169.254.200.1              True
  DPU1  169.254.200.2              True
`

const mmuconfigList = `Lossless traffic pattern:
--------------------  -
default_dynamic_th    0
over_subscribe_ratio  2
--------------------  -

Pool: ingress_lossless_pool
----  --------
mode  dynamic
size  12766208
type  ingress
----  --------

Pool: egress_lossless_pool
----  --------
mode  dynamic
size  12766208
type  egress
----  --------

Profile: pg_lossless_100000_5m_profile
----------  -----------------------------------
dynamic_th  0
pool        ingress_lossless_pool
size        56368
----------  -----------------------------------
`
